package zaplog

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gqlgate/gqlgate/internal/eventbus"
	"github.com/gqlgate/gqlgate/internal/events"
	"github.com/gqlgate/gqlgate/internal/reqid"
)

func TestHTTPFinishLogged(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	core, logs := observer.New(zapcore.DebugLevel)
	Attach(zap.New(core))

	ctx, rid := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200, BatchSize: 1, Duration: time.Millisecond})

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, rid, fields["request_id"])
	require.Equal(t, int64(200), fields["status"])
	require.Equal(t, "/graphql", fields["path"])
}

func TestFailedOperationLoggedAsWarning(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	core, logs := observer.New(zapcore.DebugLevel)
	Attach(zap.New(core))

	ctx := context.Background()
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", Errors: []error{context.Canceled}})

	require.Len(t, logs.FilterMessage("graphql operation").All(), 1)
	failed := logs.FilterMessage("graphql operation failed").All()
	require.Len(t, failed, 1)
	require.Equal(t, zapcore.WarnLevel, failed[0].Level)
}
