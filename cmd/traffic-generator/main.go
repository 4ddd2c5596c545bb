package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sreedhargs89/observability-advanced/internal/config"
	"github.com/sreedhargs89/observability-advanced/internal/telemetry"
	"github.com/sreedhargs89/observability-advanced/internal/traffic"
)

const serviceName = "traffic-generator"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(serviceName, "0")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	log := telemetry.NewLogger(cfg.ServiceName, cfg.LogLevel)

	tp, shutdown, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Tracing)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracer")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.WithError(err).Error("Error shutting down tracer provider")
		}
	}()

	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithPropagators(telemetry.Propagator()),
		),
		Timeout: 30 * time.Second,
	}

	gen := traffic.New(client, tp.Tracer(serviceName), log, traffic.Options{
		TargetURL:   cfg.Traffic.TargetURL,
		Interval:    cfg.Traffic.Interval,
		Workers:     cfg.Traffic.Workers,
		FailProduct: cfg.Orders.FailProduct,
	})

	log.WithField("target", cfg.Traffic.TargetURL).Info("Starting traffic generator")
	if err := gen.WaitReady(ctx, 5*time.Second); err != nil {
		return
	}
	log.Info("Gateway is ready, starting traffic generation")
	if err := gen.Run(ctx); err != nil {
		log.WithError(err).Error("Traffic generator stopped with error")
	}
}
