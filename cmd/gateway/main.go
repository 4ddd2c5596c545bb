package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sreedhargs89/observability-advanced/internal/app"
	"github.com/sreedhargs89/observability-advanced/internal/downstream"
	"github.com/sreedhargs89/observability-advanced/internal/gateway"
)

const serviceName = "api-gateway"

func main() {
	ctx := context.Background()

	a, err := app.New(ctx, serviceName, "8080")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize gateway")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(ctx)
	}()

	client := downstream.NewClient(a.TracerProvider, a.Propagator)
	proxy := gateway.NewProxy(client, a.TracerProvider.Tracer(serviceName), a.Log, a.Config.Gateway.Timeout)
	gateway.RegisterRoutes(a.Engine, proxy, gateway.Backends{
		UserServiceURL:  a.Config.UserServiceURL,
		OrderServiceURL: a.Config.OrderServiceURL,
	})

	if err := a.Run(); err != nil {
		a.Log.WithError(err).Error("Gateway stopped with error")
	}
}
