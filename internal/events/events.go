// Package events defines the lifecycle events published on the event bus.
// Subscribers (logging, tracing, metrics) correlate start and finish events
// through the request id carried in the context.
package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when a GraphQL HTTP request is received.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the HTTP handler completes. BatchSize is 1 for
// a single request and the batch length for batched requests.
type HTTPFinish struct {
	Request   *http.Request
	Status    int
	BatchSize int
	Duration  time.Duration
}

// GraphQLStart is emitted before executing one GraphQL operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after executing one GraphQL operation.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// WSConnect is emitted when a websocket client completes the
// connection_init handshake.
type WSConnect struct {
	ConnectionID string
	RemoteAddr   string
}

// WSDisconnect is emitted when a websocket connection ends.
type WSDisconnect struct {
	ConnectionID string
	Duration     time.Duration
}

// WSSubscriptionStart is emitted when a subscribe message is accepted.
type WSSubscriptionStart struct {
	ConnectionID   string
	SubscriptionID string
	OperationName  string
}

// WSSubscriptionFinish is emitted when a subscription completes, errors,
// or is cancelled by the client.
type WSSubscriptionFinish struct {
	ConnectionID   string
	SubscriptionID string
	Payloads       int
	Duration       time.Duration
}
