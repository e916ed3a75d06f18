// Package zaplog logs request lifecycle events through a zap logger.
package zaplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/gqlgate/gqlgate/internal/eventbus"
	"github.com/gqlgate/gqlgate/internal/events"
	"github.com/gqlgate/gqlgate/internal/reqid"
)

// Attach subscribes logger to the global event bus.
func Attach(logger *zap.Logger) {
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		logger.Info("http request",
			zap.String("request_id", rid),
			zap.String("method", e.Request.Method),
			zap.String("path", e.Request.URL.Path),
			zap.Int("status", e.Status),
			zap.Int("batch_size", e.BatchSize),
			zap.Duration("duration", e.Duration),
		)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		rid, _ := reqid.FromContext(ctx)
		fields := []zap.Field{
			zap.String("request_id", rid),
			zap.String("operation", e.OperationName),
			zap.String("type", e.OperationType),
			zap.Duration("duration", e.Duration),
		}
		if len(e.Errors) == 0 {
			logger.Debug("graphql operation", fields...)
			return
		}
		fields = append(fields, zap.Errors("errors", e.Errors))
		logger.Warn("graphql operation failed", fields...)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.WSConnect) {
		logger.Info("ws connected",
			zap.String("connection_id", e.ConnectionID),
			zap.String("remote", e.RemoteAddr),
		)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.WSDisconnect) {
		logger.Info("ws disconnected",
			zap.String("connection_id", e.ConnectionID),
			zap.Duration("duration", e.Duration),
		)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.WSSubscriptionStart) {
		logger.Debug("subscription started",
			zap.String("connection_id", e.ConnectionID),
			zap.String("subscription_id", e.SubscriptionID),
			zap.String("operation", e.OperationName),
		)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.WSSubscriptionFinish) {
		logger.Debug("subscription finished",
			zap.String("connection_id", e.ConnectionID),
			zap.String("subscription_id", e.SubscriptionID),
			zap.Int("payloads", e.Payloads),
			zap.Duration("duration", e.Duration),
		)
	})
}
