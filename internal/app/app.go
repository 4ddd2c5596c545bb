// Package app wires the process-level pieces every service binary needs:
// configuration, logging, tracing, the metrics registry and the HTTP engine.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sreedhargs89/observability-advanced/internal/config"
	"github.com/sreedhargs89/observability-advanced/internal/server"
	"github.com/sreedhargs89/observability-advanced/internal/telemetry"
)

type App struct {
	Config         *config.Config
	Log            *logrus.Entry
	TracerProvider *sdktrace.TracerProvider
	Propagator     propagation.TextMapPropagator
	Registry       *prometheus.Registry
	Engine         *gin.Engine

	shutdownTracer func(context.Context) error
}

// New loads configuration and builds the shared process state. The returned
// App must be released with Close.
func New(ctx context.Context, service, defaultPort string) (*App, error) {
	cfg, err := config.Load(service, defaultPort)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := telemetry.NewLogger(cfg.ServiceName, cfg.LogLevel)

	tp, shutdown, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gin.SetMode(gin.ReleaseMode)
	prop := telemetry.Propagator()
	engine := server.New(server.Options{
		ServiceName:    cfg.ServiceName,
		Log:            log,
		TracerProvider: tp,
		Propagator:     prop,
		Registry:       reg,
	})

	return &App{
		Config:         cfg,
		Log:            log,
		TracerProvider: tp,
		Propagator:     prop,
		Registry:       reg,
		Engine:         engine,
		shutdownTracer: shutdown,
	}, nil
}

// Run serves the engine until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Log.WithFields(logrus.Fields{
		"port":             a.Config.Port,
		"tracing":          a.Config.Tracing.Exporter,
		"tracing_endpoint": a.Config.Tracing.Endpoint,
	}).Infof("Starting %s", a.Config.ServiceName)

	return server.Run(ctx, a.Config.Addr(), a.Engine, a.Config.ShutdownTimeout, a.Log)
}

// Close flushes pending spans.
func (a *App) Close(ctx context.Context) {
	if err := a.shutdownTracer(ctx); err != nil {
		a.Log.WithError(err).Error("Error shutting down tracer provider")
	}
}
