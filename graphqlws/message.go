package graphqlws

import "encoding/json"

// Subprotocol is the websocket subprotocol this package speaks.
const Subprotocol = "graphql-transport-ws"

type messageType string

const (
	typeConnectionInit messageType = "connection_init"
	typeConnectionAck  messageType = "connection_ack"
	typePing           messageType = "ping"
	typePong           messageType = "pong"
	typeSubscribe      messageType = "subscribe"
	typeNext           messageType = "next"
	typeError          messageType = "error"
	typeComplete       messageType = "complete"
)

// message is the graphql-transport-ws frame envelope.
type message struct {
	ID      string          `json:"id,omitempty"`
	Type    messageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Close codes defined by the graphql-transport-ws protocol.
const (
	closeBadRequest          = 4400
	closeUnauthorized        = 4401
	closeInitTimeout         = 4408
	closeSubscriberExists    = 4409
	closeTooManyInitRequests = 4429
)
