package gqlgate

import (
	"encoding/json"
	"fmt"

	graphql "github.com/graph-gophers/graphql-go"
	qerrors "github.com/graph-gophers/graphql-go/errors"
)

// Response is the GraphQL response envelope. A request that failed before
// execution carries no data key at all; a request that executed keeps its
// data (possibly null, possibly partial) alongside any errors.
type Response struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     []*Error        `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

// Location is a position in the query document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error is a GraphQL error in the standard response format.
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Errorf builds an *Error from a format string.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// ErrorResponse wraps errs into a Response with no data key.
func ErrorResponse(errs ...*Error) *Response {
	return &Response{Errors: errs}
}

// AsErrors converts err into response-format errors. Transports use it to
// report subscribe-time failures in-band.
func AsErrors(err error) []*Error {
	return []*Error{toError(err)}
}

// toError normalizes an arbitrary error into the response format.
func toError(err error) *Error {
	switch e := err.(type) {
	case *Error:
		return e
	case *qerrors.QueryError:
		return fromQueryError(e)
	default:
		return &Error{Message: err.Error()}
	}
}

func fromQueryError(qe *qerrors.QueryError) *Error {
	e := &Error{
		Message:    qe.Message,
		Path:       qe.Path,
		Extensions: qe.Extensions,
	}
	for _, loc := range qe.Locations {
		e.Locations = append(e.Locations, Location{Line: loc.Line, Column: loc.Column})
	}
	return e
}

// fromSchemaResponse converts the engine's response into the local envelope.
func fromSchemaResponse(resp *graphql.Response) *Response {
	out := &Response{Data: resp.Data, Extensions: resp.Extensions}
	for _, qe := range resp.Errors {
		out.Errors = append(out.Errors, fromQueryError(qe))
	}
	return out
}
