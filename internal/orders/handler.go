package orders

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	svc    *Service
	tracer trace.Tracer
	log    *logrus.Entry
}

func NewHandler(svc *Service, tracer trace.Tracer, log *logrus.Entry) *Handler {
	return &Handler{svc: svc, tracer: tracer, log: log}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/orders", h.list)
	r.GET("/orders/:id", h.get)
	r.POST("/orders", h.create)
	r.DELETE("/orders/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	order, err := h.svc.Create(c.Request.Context(), c.ShouldBindJSON)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) list(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_orders")
	defer span.End()

	orders := h.svc.List()
	span.SetAttributes(attribute.Int("order.count", len(orders)))
	h.log.WithContext(ctx).WithField("order_count", len(orders)).Info("Fetching all orders")

	c.JSON(http.StatusOK, orders)
}

func (h *Handler) get(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_order")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))
	log := h.log.WithContext(ctx).WithField("order_id", id)
	log.Info("Fetching order")

	order, err := h.svc.Get(id)
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		log.Warn("Order not found")
		h.fail(c, err)
		return
	}

	log.WithField("product", order.Product).Info("Order found")
	c.JSON(http.StatusOK, order)
}

func (h *Handler) delete(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "delete_order")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))
	log := h.log.WithContext(ctx).WithField("order_id", id)

	order, err := h.svc.Delete(id)
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		log.Warn("Cannot delete: Order not found")
		h.fail(c, err)
		return
	}

	log.WithField("product", order.Product).Info("Order deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	c.JSON(status, gin.H{"error": msg})
}
