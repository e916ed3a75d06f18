package gqlgate

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/require"

	"github.com/gqlgate/gqlgate/examples/todos"
)

func TestSchemaExecutorQuery(t *testing.T) {
	exec := NewSchemaExecutor(todos.NewSchema())
	res := exec.Execute(context.Background(), &Request{Query: `{ todos { text done } }`})

	require.Empty(t, res.Errors)
	require.Contains(t, string(res.Data), "buy milk")
}

func TestSchemaExecutorVariables(t *testing.T) {
	exec := NewSchemaExecutor(todos.NewSchema())
	res := exec.Execute(context.Background(), &Request{
		Query:     `mutation Add($text: String!) { addTodo(text: $text) { id text } }`,
		Variables: map[string]any{"text": "ship it"},
	})

	require.Empty(t, res.Errors)
	require.Contains(t, string(res.Data), "ship it")
}

func TestSchemaExecutorValidationError(t *testing.T) {
	exec := NewSchemaExecutor(todos.NewSchema())
	res := exec.Execute(context.Background(), &Request{Query: `{ nope }`})

	require.Nil(t, res.Data)
	require.NotEmpty(t, res.Errors)
	require.NotEmpty(t, res.Errors[0].Locations)
}

func TestSchemaExecutorResolverError(t *testing.T) {
	exec := NewSchemaExecutor(todos.NewSchema())
	res := exec.Execute(context.Background(), &Request{
		Query: `mutation { toggleTodo(id: "999") { id } }`,
	})

	require.NotEmpty(t, res.Errors)
	require.Contains(t, res.Errors[0].Message, "999")
	require.NotEmpty(t, res.Errors[0].Path)
}

func TestSchemaExecutorSubscription(t *testing.T) {
	r := todos.NewResolver()
	schema := graphql.MustParseSchema(todos.SchemaString, r)
	exec := NewSchemaExecutor(schema)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := exec.Subscribe(ctx, &Request{Query: `subscription { todoAdded { text } }`})
	require.NoError(t, err)

	// The engine registers the listener asynchronously, so keep adding
	// until a payload comes through.
	var got *Response
	deadline := time.After(5 * time.Second)
loop:
	for {
		r.AddTodo(struct{ Text string }{Text: "new todo"})
		select {
		case got = <-ch:
			break loop
		case <-deadline:
			t.Fatal("no subscription payload")
		case <-time.After(50 * time.Millisecond):
		}
	}
	require.NotNil(t, got)
	require.Contains(t, string(got.Data), "new todo")

	cancel()
	for range ch {
		// Drain until the executor closes the channel.
	}
}

func TestSchemaExecutorSubscribeRejectsQuery(t *testing.T) {
	exec := NewSchemaExecutor(todos.NewSchema())
	_, err := exec.Subscribe(context.Background(), &Request{Query: `{ todos { id } }`})
	require.Error(t, err)
}

func TestAsSubscriber(t *testing.T) {
	exec := NewSchemaExecutor(todos.NewSchema())
	sub, err := AsSubscriber(exec)
	require.NoError(t, err)
	require.NotNil(t, sub)

	_, err = AsSubscriber(ExecutorFunc(func(context.Context, *Request) *Response { return nil }))
	require.Error(t, err)
}

func TestResponseSerialization(t *testing.T) {
	res := &Response{
		Data: json.RawMessage(`{"a":1}`),
		Errors: []*Error{{
			Message:   "boom",
			Locations: []Location{{Line: 1, Column: 2}},
			Path:      []any{"a", 0},
		}},
	}
	out, err := json.Marshal(res)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"data": {"a":1},
		"errors": [{"message":"boom","locations":[{"line":1,"column":2}],"path":["a",0]}]
	}`, string(out))

	out, err = json.Marshal(ErrorResponse(Errorf("nope")))
	require.NoError(t, err)
	require.False(t, strings.Contains(string(out), "data"))
}
