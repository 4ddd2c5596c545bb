// Package traffic drives synthetic workflows through the gateway so that
// logs, traces and metrics have something to show.
package traffic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sreedhargs89/observability-advanced/internal/correlation"
)

var products = []string{"laptop", "phone", "headphones", "coffee", "backpack"}

type Options struct {
	TargetURL   string
	Interval    time.Duration
	Workers     int
	FailProduct string
}

type Generator struct {
	client *http.Client
	tracer trace.Tracer
	log    *logrus.Entry
	opts   Options
}

func New(client *http.Client, tracer trace.Tracer, log *logrus.Entry, opts Options) *Generator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Generator{
		client: client,
		tracer: tracer,
		log:    log,
		opts:   opts,
	}
}

// WaitReady polls the gateway's health endpoint until it answers 200.
func (g *Generator) WaitReady(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		resp, err := g.send(ctx, http.MethodGet, "/health", nil)
		if err == nil && resp.status == http.StatusOK {
			g.log.WithField("target", g.opts.TargetURL).Info("Gateway is ready")
			return nil
		}
		g.log.WithField("target", g.opts.TargetURL).Info("Waiting for gateway to be ready...")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run executes a round of workflows every interval until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.opts.Interval)
	defer ticker.Stop()

	for {
		if err := g.Round(ctx); err != nil && !errors.Is(err, context.Canceled) {
			g.log.WithError(err).Warn("Traffic round ended with error")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Round runs Workers order workflows plus one each of the error scenarios
// concurrently and returns the first transport failure.
func (g *Generator) Round(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < g.opts.Workers; i++ {
		product := products[rand.Intn(len(products))]
		quantity := rand.Intn(5) + 1
		eg.Go(func() error { return g.orderWorkflow(ctx, product, quantity) })
	}
	eg.Go(func() error { return g.failureWorkflow(ctx) })
	eg.Go(func() error { return g.unknownUserWorkflow(ctx) })
	return eg.Wait()
}

func (g *Generator) orderWorkflow(ctx context.Context, product string, quantity int) error {
	ctx, span := g.tracer.Start(ctx, "order_workflow")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.type", "complete_order"),
		attribute.String("order.product", product),
		attribute.Int("order.quantity", quantity),
	)

	userID, err := g.createUser(ctx)
	if err != nil || userID == "" {
		return g.fail(span, err)
	}

	resp, err := g.send(ctx, http.MethodPost, "/orders", map[string]any{
		"user_id":  userID,
		"product":  product,
		"quantity": quantity,
	})
	if err != nil {
		return g.fail(span, err)
	}
	var order struct {
		ID string `json:"id"`
	}
	if resp.status != http.StatusCreated || json.Unmarshal(resp.body, &order) != nil {
		return nil
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	for _, step := range []struct{ method, path string }{
		{http.MethodGet, "/orders/" + order.ID},
		{http.MethodGet, "/users/" + userID},
		{http.MethodDelete, "/orders/" + order.ID},
	} {
		if _, err := g.send(ctx, step.method, step.path, nil); err != nil {
			return g.fail(span, err)
		}
	}
	return nil
}

// failureWorkflow orders the failure-injection product for a real user and
// then tries an unsupported method.
func (g *Generator) failureWorkflow(ctx context.Context) error {
	ctx, span := g.tracer.Start(ctx, "failure_workflow")
	defer span.End()
	span.SetAttributes(attribute.String("workflow.type", "payment_failure"))

	userID, err := g.createUser(ctx)
	if err != nil || userID == "" {
		return g.fail(span, err)
	}
	if _, err := g.send(ctx, http.MethodPost, "/orders", map[string]any{
		"user_id":  userID,
		"product":  g.opts.FailProduct,
		"quantity": 1,
	}); err != nil {
		return g.fail(span, err)
	}
	if _, err := g.send(ctx, http.MethodPut, "/users/"+userID, map[string]string{"name": "nobody"}); err != nil {
		return g.fail(span, err)
	}
	return nil
}

func (g *Generator) unknownUserWorkflow(ctx context.Context) error {
	ctx, span := g.tracer.Start(ctx, "unknown_user_workflow")
	defer span.End()
	span.SetAttributes(attribute.String("workflow.type", "unknown_user"))

	if _, err := g.send(ctx, http.MethodPost, "/orders", map[string]any{
		"user_id":  "999999",
		"product":  products[0],
		"quantity": 1,
	}); err != nil {
		return g.fail(span, err)
	}
	_, err := g.send(ctx, http.MethodGet, "/orders/999999", nil)
	return g.fail(span, err)
}

func (g *Generator) createUser(ctx context.Context) (string, error) {
	n := rand.Intn(100000)
	resp, err := g.send(ctx, http.MethodPost, "/users", map[string]string{
		"name":  fmt.Sprintf("User %d", n),
		"email": fmt.Sprintf("user%d@example.com", n),
	})
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusCreated {
		return "", nil
	}
	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.body, &user); err != nil {
		return "", fmt.Errorf("decode user: %w", err)
	}
	return user.ID, nil
}

func (g *Generator) fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

type response struct {
	status int
	body   []byte
}

// send issues one request under a fresh correlation identity.
func (g *Generator) send(ctx context.Context, method, path string, payload any) (*response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.opts.TargetURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	id := uuid.NewString()
	req.Header.Set(correlation.Header, id)

	log := g.log.WithFields(logrus.Fields{
		"method":         method,
		"path":           path,
		"correlation_id": id,
		"trace_id":       trace.SpanFromContext(ctx).SpanContext().TraceID().String(),
	})

	resp, err := g.client.Do(req)
	if err != nil {
		log.WithError(err).Error("HTTP request failed")
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"status_code":  resp.StatusCode,
		"echoed_id":    resp.Header.Get(correlation.Header),
		"echo_matches": resp.Header.Get(correlation.Header) == id,
	}).Info("HTTP request completed")

	return &response{status: resp.StatusCode, body: b}, nil
}
