// Package orders owns order records and the cross-service order creation
// flow.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sreedhargs89/observability-advanced/internal/downstream"
	"github.com/sreedhargs89/observability-advanced/internal/store"
)

// Caller issues a single outbound call.
type Caller interface {
	Do(ctx context.Context, req downstream.Request) (*downstream.Response, error)
}

// Binder decodes and validates the request body into obj. gin's
// (*Context).ShouldBindJSON satisfies it.
type Binder func(obj any) error

type Config struct {
	UserServiceURL    string
	UserLookupTimeout time.Duration
	UnitPrice         float64
	// FailProduct is a failure-injection fixture: ordering it panics while
	// the total is calculated.
	FailProduct string
}

type Service struct {
	store   *store.Memory[Order]
	users   Caller
	tracer  trace.Tracer
	log     *logrus.Entry
	metrics *Metrics
	cfg     Config
	price   decimal.Decimal
	now     func() time.Time
}

func NewService(st *store.Memory[Order], users Caller, tracer trace.Tracer, log *logrus.Entry, metrics *Metrics, cfg Config) *Service {
	return &Service{
		store:   st,
		users:   users,
		tracer:  tracer,
		log:     log,
		metrics: metrics,
		cfg:     cfg,
		price:   decimal.NewFromFloat(cfg.UnitPrice),
		now:     time.Now,
	}
}

// Create runs the order creation steps in order: validate input, validate
// the user remotely, calculate the total, persist. The first failing step
// ends the flow with a classified error; nothing after it runs.
func (s *Service) Create(ctx context.Context, bind Binder) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "create_order")
	defer span.End()
	log := s.log.WithContext(ctx)

	var req CreateOrderRequest
	if err := bind(&req); err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		log.WithError(err).Error("Invalid order data")
		var qe *QuantityError
		if errors.As(err, &qe) {
			return Order{}, fmt.Errorf("%w: %w", ErrInvalidQuantity, err)
		}
		return Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	userID, product, quantity := string(*req.UserID), *req.Product, int(*req.Quantity)
	span.SetAttributes(
		attribute.String("order.user_id", userID),
		attribute.String("order.product", product),
		attribute.Int("order.quantity", quantity),
	)
	// Counters cannot go down, so a negative order has no valid total.
	if quantity < 0 {
		span.SetAttributes(attribute.Bool("error", true))
		log.WithField("quantity", quantity).Error("Invalid order data")
		return Order{}, fmt.Errorf("%w: %d is negative", ErrInvalidQuantity, quantity)
	}

	if err := s.validateUser(ctx, userID); err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		return Order{}, err
	}

	total := s.calculateTotal(ctx, product, quantity)
	order := s.save(ctx, userID, product, quantity, total)

	s.metrics.OrdersCreated.WithLabelValues(order.Product).Inc()
	s.metrics.OrderValue.Add(order.Total)

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Float64("order.total", order.Total),
	)
	log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"product":  order.Product,
		"quantity": order.Quantity,
		"total":    order.Total,
	}).Info("Order created successfully")

	return order, nil
}

func (s *Service) validateUser(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "validate_user")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID))
	log := s.log.WithContext(ctx).WithField("user_id", userID)
	log.Info("Validating user")

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.UserLookupTimeout)
	defer cancel()

	resp, err := s.users.Do(callCtx, downstream.Request{
		Method: http.MethodGet,
		URL:    s.cfg.UserServiceURL + "/users/" + url.PathEscape(userID),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("error", true))
		log.WithError(err).Error("Failed to connect to user service")
		return fmt.Errorf("%w: %w", ErrUserServiceUnavailable, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		span.SetAttributes(attribute.Bool("error", true))
		log.Warn("User not found")
		return ErrUserNotFound
	case resp.StatusCode != http.StatusOK:
		span.SetAttributes(attribute.Bool("error", true))
		log.WithField("status_code", resp.StatusCode).Error("User service error")
		return fmt.Errorf("%w: status %d", ErrUserValidation, resp.StatusCode)
	}

	var user struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("error", true))
		log.WithError(err).Error("Malformed response from user service")
		return fmt.Errorf("%w: decode user: %w", ErrUserServiceUnavailable, err)
	}
	log.WithField("user_email", user.Email).Info("User validated successfully")
	return nil
}

func (s *Service) calculateTotal(ctx context.Context, product string, quantity int) decimal.Decimal {
	ctx, span := s.tracer.Start(ctx, "calculate_total")
	defer span.End()
	log := s.log.WithContext(ctx)

	if product == s.cfg.FailProduct {
		span.RecordError(errPaymentGateway)
		span.SetStatus(codes.Error, errPaymentGateway.Error())
		log.WithFields(logrus.Fields{
			"reason":  errPaymentGateway.Error(),
			"product": product,
		}).Error("Payment processing failed")
		panic(errPaymentGateway)
	}

	total := s.price.Mul(decimal.NewFromInt(int64(quantity)))
	span.SetAttributes(attribute.String("order.total", total.StringFixed(2)))
	log.WithFields(logrus.Fields{
		"quantity":       quantity,
		"price_per_item": s.price.String(),
		"total":          total.String(),
	}).Debug("Calculated order total")
	return total
}

func (s *Service) save(ctx context.Context, userID, product string, quantity int, total decimal.Decimal) Order {
	ctx, span := s.tracer.Start(ctx, "save_order")
	defer span.End()

	createdAt := float64(s.now().UnixMicro()) / 1e6
	order := s.store.Add(func(id string) Order {
		return Order{
			ID:        id,
			UserID:    userID,
			Product:   product,
			Quantity:  quantity,
			Total:     total.InexactFloat64(),
			Status:    StatusPending,
			CreatedAt: createdAt,
		}
	})

	span.SetAttributes(attribute.String("order.id", order.ID))
	s.log.WithContext(ctx).WithField("order_id", order.ID).Info("Order saved to database")
	return order
}

func (s *Service) List() []Order {
	return s.store.List()
}

func (s *Service) Get(id string) (Order, error) {
	order, ok := s.store.Get(id)
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) Delete(id string) (Order, error) {
	order, ok := s.store.Delete(id)
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}
