// Package instrumentation wraps every inbound request with correlation,
// logging and metrics, and provides the per-service last-resort failure
// handler.
package instrumentation

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sreedhargs89/observability-advanced/internal/correlation"
)

const unknownRoute = "unknown"

type Pipeline struct {
	metrics *HTTPMetrics
	log     *logrus.Entry
}

func NewPipeline(metrics *HTTPMetrics, log *logrus.Entry) *Pipeline {
	return &Pipeline{metrics: metrics, log: log}
}

// Middleware must be installed ahead of Recovery so that its exit hook sees
// the status written by the recovery handler.
func (p *Pipeline) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := correlation.Derive(c.Request.Header)
		ctx := correlation.WithID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		// Headers cannot be changed once the body is flushed, so the echo is
		// set before the handler runs.
		c.Header(correlation.Header, id)

		p.metrics.Active.Inc()
		p.log.WithContext(ctx).WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_addr": c.ClientIP(),
		}).Info("Incoming request")

		defer p.exit(c, start)
		c.Next()
	}
}

func (p *Pipeline) exit(c *gin.Context, start time.Time) {
	duration := time.Since(start)
	status := c.Writer.Status()
	route := c.FullPath()
	if route == "" {
		route = unknownRoute
	}
	method := c.Request.Method

	p.metrics.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.metrics.Duration.WithLabelValues(method, route).Observe(duration.Seconds())
	p.metrics.Active.Dec()

	p.log.WithContext(c.Request.Context()).WithFields(logrus.Fields{
		"method":      method,
		"path":        c.Request.URL.Path,
		"status_code": status,
		"duration_ms": math.Round(float64(duration.Microseconds())/10) / 100,
	}).Info("Outgoing response")
}
