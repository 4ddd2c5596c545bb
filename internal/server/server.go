// Package server assembles the gin engine shared by every service and runs
// it with graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sreedhargs89/observability-advanced/internal/instrumentation"
)

type Options struct {
	ServiceName    string
	Log            *logrus.Entry
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
	Registry       *prometheus.Registry
}

// New returns an engine with tracing, the instrumentation pipeline, the
// global recovery handler and the /health and /metrics endpoints installed.
// Routes registered on it afterwards inherit all of them.
func New(opts Options) *gin.Engine {
	metrics := instrumentation.NewHTTPMetrics(opts.Registry)

	r := gin.New()
	r.Use(otelgin.Middleware(opts.ServiceName,
		otelgin.WithTracerProvider(opts.TracerProvider),
		otelgin.WithPropagators(opts.Propagator),
	))
	r.Use(instrumentation.NewPipeline(metrics, opts.Log).Middleware())
	r.Use(instrumentation.Recovery(opts.Log))

	r.GET("/health", healthHandler(opts.ServiceName))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))

	return r
}

func healthHandler(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": service,
		})
	}
}

// Run serves h on addr until ctx is cancelled, then drains in-flight
// requests for at most shutdownTimeout.
func Run(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration, log *logrus.Entry) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
