// Package graphqlws serves GraphQL subscriptions over the
// graphql-transport-ws websocket subprotocol. The upgrade mechanics are
// delegated to gorilla/websocket; this package owns the protocol state
// machine: init/ack handshake, one context per subscription, next/error/
// complete delivery.
package graphqlws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gqlgate/gqlgate"
	"github.com/gqlgate/gqlgate/internal/eventbus"
	"github.com/gqlgate/gqlgate/internal/events"
	"github.com/gqlgate/gqlgate/internal/reqid"
)

type Options struct {
	// InitTimeout bounds the wait for the connection_init message.
	// 0 means no timeout.
	InitTimeout time.Duration

	// WriteTimeout bounds each outgoing frame write.
	WriteTimeout time.Duration

	// ReadLimit caps the size of incoming frames. 0 means unlimited.
	ReadLimit int64

	// CheckOrigin overrides the upgrade origin check. Nil keeps the
	// gorilla default (same origin).
	CheckOrigin func(*http.Request) bool
}

type Option func(*Options)

func WithInitTimeout(d time.Duration) Option  { return func(o *Options) { o.InitTimeout = d } }
func WithWriteTimeout(d time.Duration) Option { return func(o *Options) { o.WriteTimeout = d } }
func WithReadLimit(n int64) Option            { return func(o *Options) { o.ReadLimit = n } }
func WithCheckOrigin(f func(*http.Request) bool) Option {
	return func(o *Options) { o.CheckOrigin = f }
}

// Handler upgrades websocket requests and serves the subscription protocol.
// Anything that is not a websocket upgrade falls through to next, so one
// route can serve both transports.
type Handler struct {
	sub      gqlgate.Subscriber
	next     http.Handler
	opt      Options
	upgrader websocket.Upgrader
}

// New wraps next with subscription support backed by sub.
func New(sub gqlgate.Subscriber, next http.Handler, opts ...Option) *Handler {
	op := Options{InitTimeout: 15 * time.Second, WriteTimeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{
		sub:  sub,
		next: next,
		opt:  op,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			CheckOrigin:  op.CheckOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		h.next.ServeHTTP(w, r)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	c := &conn{
		id:     uuid.NewString(),
		ws:     ws,
		sub:    h.sub,
		opt:    h.opt,
		remote: r.RemoteAddr,
		subs:   make(map[string]context.CancelFunc),
	}
	c.serve(r.Context())
}

type conn struct {
	id     string
	ws     *websocket.Conn
	sub    gqlgate.Subscriber
	opt    Options
	remote string

	writeMu sync.Mutex

	mu    sync.Mutex
	acked bool
	subs  map[string]context.CancelFunc

	wg sync.WaitGroup
}

func (c *conn) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	ctx = reqid.WithID(ctx, c.id)

	start := time.Now()
	defer func() {
		cancel()
		c.wg.Wait()
		if c.ready() {
			eventbus.Publish(ctx, events.WSDisconnect{ConnectionID: c.id, Duration: time.Since(start)})
		}
		_ = c.ws.Close()
	}()

	if c.opt.ReadLimit > 0 {
		c.ws.SetReadLimit(c.opt.ReadLimit)
	}

	var initTimer *time.Timer
	if c.opt.InitTimeout > 0 {
		initTimer = time.AfterFunc(c.opt.InitTimeout, func() {
			c.close(closeInitTimeout, "connection initialisation timeout")
		})
		defer initTimer.Stop()
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.close(closeBadRequest, "invalid message")
			return
		}

		switch msg.Type {
		case typeConnectionInit:
			c.mu.Lock()
			already := c.acked
			c.acked = true
			c.mu.Unlock()
			if already {
				c.close(closeTooManyInitRequests, "too many initialisation requests")
				return
			}
			if initTimer != nil {
				initTimer.Stop()
			}
			if err := c.write(message{Type: typeConnectionAck}); err != nil {
				return
			}
			eventbus.Publish(ctx, events.WSConnect{ConnectionID: c.id, RemoteAddr: c.remote})

		case typePing:
			if err := c.write(message{Type: typePong, Payload: msg.Payload}); err != nil {
				return
			}

		case typePong:
			// Unsolicited pongs are allowed and ignored.

		case typeSubscribe:
			if !c.ready() {
				c.close(closeUnauthorized, "unauthorized")
				return
			}
			if msg.ID == "" {
				c.close(closeBadRequest, "subscribe without id")
				return
			}
			var req gqlgate.Request
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				c.close(closeBadRequest, "invalid subscribe payload")
				return
			}
			sctx, scancel := context.WithCancel(ctx)
			c.mu.Lock()
			if _, exists := c.subs[msg.ID]; exists {
				c.mu.Unlock()
				scancel()
				c.close(closeSubscriberExists, "subscriber for "+msg.ID+" already exists")
				return
			}
			c.subs[msg.ID] = scancel
			c.mu.Unlock()
			c.wg.Add(1)
			go c.run(sctx, msg.ID, req)

		case typeComplete:
			c.mu.Lock()
			if scancel, ok := c.subs[msg.ID]; ok {
				scancel()
				delete(c.subs, msg.ID)
			}
			c.mu.Unlock()

		default:
			c.close(closeBadRequest, "unexpected message type")
			return
		}
	}
}

// run drives one subscription until its channel closes or its context is
// cancelled.
func (c *conn) run(ctx context.Context, id string, req gqlgate.Request) {
	defer c.wg.Done()
	start := time.Now()
	payloads := 0
	defer func() {
		c.mu.Lock()
		if scancel, ok := c.subs[id]; ok {
			scancel()
			delete(c.subs, id)
		}
		c.mu.Unlock()
		eventbus.Publish(ctx, events.WSSubscriptionFinish{
			ConnectionID:   c.id,
			SubscriptionID: id,
			Payloads:       payloads,
			Duration:       time.Since(start),
		})
	}()

	eventbus.Publish(ctx, events.WSSubscriptionStart{
		ConnectionID:   c.id,
		SubscriptionID: id,
		OperationName:  req.OperationName,
	})

	ch, err := c.sub.Subscribe(ctx, &req)
	if err != nil {
		payload, _ := json.Marshal(gqlgate.AsErrors(err))
		_ = c.write(message{ID: id, Type: typeError, Payload: payload})
		return
	}

	for {
		select {
		case resp, ok := <-ch:
			if !ok {
				if ctx.Err() == nil {
					_ = c.write(message{ID: id, Type: typeComplete})
				}
				return
			}
			payload, err := json.Marshal(resp)
			if err != nil {
				payload, _ = json.Marshal(gqlgate.ErrorResponse(gqlgate.Errorf("unserializable payload")))
			}
			if err := c.write(message{ID: id, Type: typeNext, Payload: payload}); err != nil {
				return
			}
			payloads++
		case <-ctx.Done():
			return
		}
	}
}

func (c *conn) ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acked
}

func (c *conn) write(msg message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.opt.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.opt.WriteTimeout))
	}
	return c.ws.WriteJSON(msg)
}

func (c *conn) close(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
}
