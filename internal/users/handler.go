// Package users owns user records. It has no outbound dependencies.
package users

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sreedhargs89/observability-advanced/internal/store"
)

type Handler struct {
	store   *store.Memory[User]
	tracer  trace.Tracer
	log     *logrus.Entry
	created prometheus.Counter
	now     func() time.Time
}

func NewHandler(st *store.Memory[User], tracer trace.Tracer, log *logrus.Entry, reg prometheus.Registerer) *Handler {
	return &Handler{
		store:  st,
		tracer: tracer,
		log:    log,
		created: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "users_created_total",
			Help: "Total users created",
		}),
		now: time.Now,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/users", h.list)
	r.GET("/users/:id", h.get)
	r.POST("/users", h.create)
	r.DELETE("/users/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_users")
	defer span.End()

	users := h.store.List()
	span.SetAttributes(attribute.Int("user.count", len(users)))
	h.log.WithContext(ctx).WithField("user_count", len(users)).Info("Fetching all users")

	c.JSON(http.StatusOK, users)
}

func (h *Handler) get(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_user")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("user.id", id))
	log := h.log.WithContext(ctx).WithField("user_id", id)
	log.Info("Fetching user")

	user, ok := h.store.Get(id)
	if !ok {
		span.SetAttributes(attribute.Bool("error", true))
		log.Warn("User not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	log.WithField("user_email", user.Email).Info("User found")
	c.JSON(http.StatusOK, user)
}

func (h *Handler) create(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "create_user")
	defer span.End()

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		h.log.WithContext(ctx).WithError(err).Error("Invalid user data")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: name, email"})
		return
	}

	createdAt := float64(h.now().UnixMicro()) / 1e6
	user := h.store.Add(func(id string) User {
		return User{ID: id, Name: req.Name, Email: req.Email, CreatedAt: createdAt}
	})
	h.created.Inc()

	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("user.email", user.Email),
	)
	h.log.WithContext(ctx).WithFields(logrus.Fields{
		"user_id":    user.ID,
		"user_email": user.Email,
		"user_name":  user.Name,
	}).Info("User created successfully")

	c.JSON(http.StatusCreated, user)
}

func (h *Handler) delete(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "delete_user")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("user.id", id))
	log := h.log.WithContext(ctx).WithField("user_id", id)

	user, ok := h.store.Delete(id)
	if !ok {
		span.SetAttributes(attribute.Bool("error", true))
		log.Warn("Cannot delete: User not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	log.WithField("user_email", user.Email).Info("User deleted")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
