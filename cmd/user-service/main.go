package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sreedhargs89/observability-advanced/internal/app"
	"github.com/sreedhargs89/observability-advanced/internal/store"
	"github.com/sreedhargs89/observability-advanced/internal/users"
)

const serviceName = "user-service"

func main() {
	ctx := context.Background()

	a, err := app.New(ctx, serviceName, "8001")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize user service")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(ctx)
	}()

	users.NewHandler(
		store.NewMemory[users.User](),
		a.TracerProvider.Tracer(serviceName),
		a.Log,
		a.Registry,
	).RegisterRoutes(a.Engine)

	if err := a.Run(); err != nil {
		a.Log.WithError(err).Error("User service stopped with error")
	}
}
