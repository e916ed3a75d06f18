package gqlgate

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"
	qerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/pkg/errors"
)

// Executor runs a single GraphQL request to completion.
type Executor interface {
	Execute(ctx context.Context, req *Request) *Response
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req *Request) *Response

func (f ExecutorFunc) Execute(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// Subscriber starts a streaming GraphQL operation. The returned channel is
// closed when the subscription ends; cancelling ctx ends it early.
type Subscriber interface {
	Subscribe(ctx context.Context, req *Request) (<-chan *Response, error)
}

// SchemaExecutor adapts a graph-gophers schema to Executor and Subscriber.
type SchemaExecutor struct {
	schema *graphql.Schema
}

// NewSchemaExecutor wraps an already parsed schema.
func NewSchemaExecutor(schema *graphql.Schema) *SchemaExecutor {
	return &SchemaExecutor{schema: schema}
}

func (e *SchemaExecutor) Execute(ctx context.Context, req *Request) *Response {
	resp := e.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	return fromSchemaResponse(resp)
}

func (e *SchemaExecutor) Subscribe(ctx context.Context, req *Request) (<-chan *Response, error) {
	payloads, err := e.schema.Subscribe(ctx, req.Query, req.OperationName, req.Variables)
	if err != nil {
		return nil, err
	}
	out := make(chan *Response)
	go func() {
		defer close(out)
		for payload := range payloads {
			resp, ok := payload.(*graphql.Response)
			if !ok {
				resp = &graphql.Response{
					Errors: []*qerrors.QueryError{qerrors.Errorf("unexpected subscription payload %T", payload)},
				}
			}
			select {
			case out <- fromSchemaResponse(resp):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

var errNotSubscriber = errors.New("executor does not support subscriptions")

// AsSubscriber returns exec as a Subscriber, or an error if it is not one.
func AsSubscriber(exec Executor) (Subscriber, error) {
	if s, ok := exec.(Subscriber); ok {
		return s, nil
	}
	return nil, errNotSubscriber
}
