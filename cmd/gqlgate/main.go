// Command gqlgate runs a development GraphQL gateway around the example
// todos schema: HTTP endpoint with GraphiQL, websocket subscriptions, and
// optional tracing and metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gqlgate/gqlgate"
	"github.com/gqlgate/gqlgate/examples/todos"
	"github.com/gqlgate/gqlgate/graphqlws"
	"github.com/gqlgate/gqlgate/internal/eventbus"
	"github.com/gqlgate/gqlgate/internal/metrics"
	"github.com/gqlgate/gqlgate/internal/otel"
	"github.com/gqlgate/gqlgate/internal/zaplog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gqlgate",
		Short:         "GraphQL over HTTP gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the example todos schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	}

	fs := cmd.Flags()
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("metrics-addr", "", "Prometheus listen address; empty disables metrics")
	fs.Bool("pretty", false, "Pretty-print JSON responses")
	fs.Duration("timeout", 10*time.Second, "Per-request timeout")
	fs.Int64("max-body", 1<<20, "Request body size limit in bytes")
	fs.Int("max-batch", 10, "Max operations per batched request")
	fs.Int("max-concurrency", 0, "Max operations executing at once; 0 means unbounded")
	fs.StringSlice("cors-origin", nil, "Allowed CORS origin; repeatable")
	fs.Bool("graphiql", true, "Serve the GraphiQL IDE")
	fs.Bool("subscriptions", true, "Serve subscriptions over websocket")
	fs.String("otel-endpoint", "", "OTLP collector endpoint")
	fs.String("otel-service", "gqlgate", "OpenTelemetry service name")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")

	v.SetEnvPrefix("GQLGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	cobra.CheckErr(v.BindPFlags(fs))
	return cmd
}

func serve(ctx context.Context, v *viper.Viper) error {
	logger, err := newLogger(v.GetString("log-level"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eventbus.Use(eventbus.New())
	zaplog.Attach(logger)

	shutdownTracing, err := otel.Setup(v.GetString("otel-endpoint"), v.GetString("otel-service"))
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	exec := gqlgate.NewSchemaExecutor(todos.NewSchema())
	opts := []gqlgate.Option{
		gqlgate.WithTimeout(v.GetDuration("timeout")),
		gqlgate.WithMaxBodyBytes(v.GetInt64("max-body")),
		gqlgate.WithMaxBatch(v.GetInt("max-batch")),
		gqlgate.WithMaxConcurrency(v.GetInt("max-concurrency")),
		gqlgate.WithGraphiQL(v.GetBool("graphiql")),
	}
	if v.GetBool("pretty") {
		opts = append(opts, gqlgate.WithPretty())
	}
	if origins := v.GetStringSlice("cors-origin"); len(origins) > 0 {
		opts = append(opts, gqlgate.WithCORS(origins...))
	}

	var handler http.Handler = gqlgate.New(exec, opts...)
	if v.GetBool("subscriptions") {
		handler = graphqlws.New(exec, handler,
			graphqlws.WithCheckOrigin(func(*http.Request) bool { return true }))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", handler)

	var metricsSrv *http.Server
	if addr := v.GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		metrics.Observe(reg)
		mmux := http.NewServeMux()
		mmux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: addr, Handler: mmux}
		go func() {
			logger.Info("metrics listening", zap.String("addr", addr))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{Addr: v.GetString("addr"), Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("graphql listening",
			zap.String("addr", srv.Addr),
			zap.Bool("subscriptions", v.GetBool("subscriptions")),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
