// Package gqlgate adapts GraphQL execution to net/http conventions: it
// parses GraphQL requests out of query strings and request bodies, drives
// an Executor, and serializes the standard GraphQL JSON response shape.
package gqlgate

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gqlgate/gqlgate/internal/eventbus"
	"github.com/gqlgate/gqlgate/internal/events"
	"github.com/gqlgate/gqlgate/internal/language"
	"github.com/gqlgate/gqlgate/internal/reqid"
)

// Handler is an http.Handler that serves a GraphQL endpoint over GET and
// POST. Subscriptions are served by the graphqlws package; this handler
// rejects them.
type Handler struct {
	exec Executor
	opt  Options
	sem  chan struct{}
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// MaxBatch caps the number of operations in one batched request.
	// 0 means unlimited.
	MaxBatch int

	// MaxConcurrency bounds the number of operations executing at once
	// across all requests. 0 means unbounded.
	MaxConcurrency int

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithMaxBatch(n int) Option          { return func(o *Options) { o.MaxBatch = n } }
func WithMaxConcurrency(n int) Option    { return func(o *Options) { o.MaxConcurrency = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithGraphiQL(enable bool) Option { return func(o *Options) { o.GraphiQL = enable } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler driving the given executor.
func New(exec Executor, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{exec: exec, opt: op}
	if op.MaxConcurrency > 0 {
		h.sem = make(chan struct{}, op.MaxConcurrency)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, _ = reqid.NewContext(ctx)
	status := http.StatusOK
	batchSize := 1
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{
			Request:   r,
			Status:    status,
			BatchSize: batchSize,
			Duration:  time.Since(start),
		})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, ErrorResponse(Errorf("method not allowed")), h.opt.Pretty)
		return
	}

	// Serve GraphiQL when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	req, batch, rerr := parseRequest(r, h.opt.MaxBodyBytes, h.opt.MaxBatch)
	if rerr != nil {
		status = rerr.status
		writeJSON(w, status, ErrorResponse(Errorf("%s", rerr.message)), h.opt.Pretty)
		return
	}

	// Over GET only query operations may run.
	if r.Method == http.MethodGet {
		if op, ok := operationType(req); ok && op != language.Query {
			status = http.StatusMethodNotAllowed
			writeJSON(w, status, ErrorResponse(Errorf("%s operations are not allowed over GET", op)), h.opt.Pretty)
			return
		}
	}

	if batch != nil {
		batchSize = len(batch)
		out := make([]any, len(batch))
		for i := range batch {
			out[i] = h.executeOne(ctx, batch[i])
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	writeJSON(w, status, h.executeOne(ctx, req), h.opt.Pretty)
}

// executeOne runs a single operation through the executor, bounded by the
// concurrency semaphore, with start/finish events around it.
func (h *Handler) executeOne(ctx context.Context, req Request) *Response {
	opType := ""
	if op, ok := operationType(req); ok {
		opType = string(op)
	}
	if opType == string(language.Subscription) {
		return ErrorResponse(Errorf("subscriptions are only supported over the websocket transport"))
	}

	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
			defer func() { <-h.sem }()
		case <-ctx.Done():
			return ErrorResponse(Errorf("request cancelled while waiting for an execution slot"))
		}
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
	})
	res := h.exec.Execute(ctx, &req)
	errs := make([]error, len(res.Errors))
	for i := range res.Errors {
		errs[i] = res.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return res
}

// operationType pre-parses the document to discover the operation the
// request would run. A document that does not parse reports no type; the
// executor will surface the parse error in-band.
func operationType(req Request) (language.Operation, bool) {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return "", false
	}
	return language.OperationType(doc, req.OperationName)
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowAny := false
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			allowAny = true
			allowed = true
		}
		if o == origin {
			allowed = true
		}
	}
	if !allowed {
		return
	}
	if allowAny {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func acceptsHTML(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "text/html") || part == "*/*" {
			return true
		}
	}
	return false
}
