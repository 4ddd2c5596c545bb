package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sreedhargs89/observability-advanced/internal/app"
	"github.com/sreedhargs89/observability-advanced/internal/downstream"
	"github.com/sreedhargs89/observability-advanced/internal/orders"
	"github.com/sreedhargs89/observability-advanced/internal/store"
)

const serviceName = "order-service"

func main() {
	ctx := context.Background()

	a, err := app.New(ctx, serviceName, "8002")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize order service")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(ctx)
	}()

	tracer := a.TracerProvider.Tracer(serviceName)
	svc := orders.NewService(
		store.NewMemory[orders.Order](),
		downstream.NewClient(a.TracerProvider, a.Propagator),
		tracer,
		a.Log,
		orders.NewMetrics(a.Registry),
		orders.Config{
			UserServiceURL:    a.Config.UserServiceURL,
			UserLookupTimeout: a.Config.Orders.UserLookupTimeout,
			UnitPrice:         a.Config.Orders.UnitPrice,
			FailProduct:       a.Config.Orders.FailProduct,
		},
	)
	orders.NewHandler(svc, tracer, a.Log).RegisterRoutes(a.Engine)

	if err := a.Run(); err != nil {
		a.Log.WithError(err).Error("Order service stopped with error")
	}
}
