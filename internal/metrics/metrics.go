// Package metrics exposes Prometheus collectors fed from the event bus.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gqlgate/gqlgate/internal/eventbus"
	"github.com/gqlgate/gqlgate/internal/events"
)

// Collectors holds the registered metric families.
type Collectors struct {
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    prometheus.Histogram
	HTTPInFlight    prometheus.Gauge
	Operations      *prometheus.CounterVec
	OperationErrors prometheus.Counter
	WSConnections   prometheus.Gauge
	WSSubscriptions prometheus.Gauge
}

// Observe registers the collectors with reg and subscribes them to the
// global event bus.
func Observe(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	c := &Collectors{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gqlgate_http_requests_total",
			Help: "GraphQL HTTP requests by response status.",
		}, []string{"status"}),
		HTTPDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gqlgate_http_request_duration_seconds",
			Help:    "GraphQL HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "gqlgate_http_requests_in_flight",
			Help: "GraphQL HTTP requests currently being served.",
		}),
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gqlgate_graphql_operations_total",
			Help: "Executed GraphQL operations by type.",
		}, []string{"type"}),
		OperationErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "gqlgate_graphql_errors_total",
			Help: "Errors returned by GraphQL operations.",
		}),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "gqlgate_ws_connections",
			Help: "Active websocket connections.",
		}),
		WSSubscriptions: f.NewGauge(prometheus.GaugeOpts{
			Name: "gqlgate_ws_subscriptions",
			Help: "Active GraphQL subscriptions.",
		}),
	}

	eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		c.HTTPInFlight.Inc()
	})
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		c.HTTPInFlight.Dec()
		c.HTTPRequests.WithLabelValues(strconv.Itoa(e.Status)).Inc()
		c.HTTPDuration.Observe(e.Duration.Seconds())
	})
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		opType := e.OperationType
		if opType == "" {
			opType = "unknown"
		}
		c.Operations.WithLabelValues(opType).Inc()
		c.OperationErrors.Add(float64(len(e.Errors)))
	})
	eventbus.Subscribe(func(ctx context.Context, e events.WSConnect) {
		c.WSConnections.Inc()
	})
	eventbus.Subscribe(func(ctx context.Context, e events.WSDisconnect) {
		c.WSConnections.Dec()
	})
	eventbus.Subscribe(func(ctx context.Context, e events.WSSubscriptionStart) {
		c.WSSubscriptions.Inc()
	})
	eventbus.Subscribe(func(ctx context.Context, e events.WSSubscriptionFinish) {
		c.WSSubscriptions.Dec()
	})

	return c
}
