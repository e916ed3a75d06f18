package metrics

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/gqlgate/gqlgate/internal/eventbus"
	"github.com/gqlgate/gqlgate/internal/events"
)

func TestHTTPMetrics(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	c := Observe(prometheus.NewRegistry())

	ctx := context.Background()
	req := httptest.NewRequest("POST", "/graphql", nil)

	eventbus.Publish(ctx, events.HTTPStart{Request: req})
	require.Equal(t, 1.0, testutil.ToFloat64(c.HTTPInFlight))

	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200, BatchSize: 1, Duration: time.Millisecond})
	require.Equal(t, 0.0, testutil.ToFloat64(c.HTTPInFlight))
	require.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("200")))
}

func TestOperationMetrics(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	c := Observe(prometheus.NewRegistry())

	ctx := context.Background()
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", Errors: []error{context.Canceled}})
	eventbus.Publish(ctx, events.GraphQLFinish{})

	require.Equal(t, 2.0, testutil.ToFloat64(c.Operations.WithLabelValues("query")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("unknown")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.OperationErrors))
}

func TestWebsocketMetrics(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	c := Observe(prometheus.NewRegistry())

	ctx := context.Background()
	eventbus.Publish(ctx, events.WSConnect{ConnectionID: "c1"})
	eventbus.Publish(ctx, events.WSSubscriptionStart{ConnectionID: "c1", SubscriptionID: "1"})
	require.Equal(t, 1.0, testutil.ToFloat64(c.WSConnections))
	require.Equal(t, 1.0, testutil.ToFloat64(c.WSSubscriptions))

	eventbus.Publish(ctx, events.WSSubscriptionFinish{ConnectionID: "c1", SubscriptionID: "1"})
	eventbus.Publish(ctx, events.WSDisconnect{ConnectionID: "c1"})
	require.Equal(t, 0.0, testutil.ToFloat64(c.WSConnections))
	require.Equal(t, 0.0, testutil.ToFloat64(c.WSSubscriptions))
}
