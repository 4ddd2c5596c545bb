package instrumentation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recovery is the global handler for failures nothing else classified. It
// logs the failure with its origin, marks the active span as errored and
// answers with a generic 500.
func Recovery(log *logrus.Entry) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		err := asError(recovered)
		file, line, function := panicSite()

		ctx := c.Request.Context()
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("error", true))

		log.WithContext(ctx).WithFields(logrus.Fields{
			"error":       err.Error(),
			"error_type":  fmt.Sprintf("%T", recovered),
			"file":        file,
			"line":        line,
			"function":    function,
			"stack_trace": string(debug.Stack()),
		}).Error("Unhandled exception")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

func asError(recovered any) error {
	switch v := recovered.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}

// panicSite reports the frame that called panic. It only gives a useful
// answer while a panic is unwinding through a deferred call.
func panicSite() (file string, line int, function string) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	panicking := false
	for {
		frame, more := frames.Next()
		if panicking && !strings.HasPrefix(frame.Function, "runtime.") {
			return filepath.Base(frame.File), frame.Line, frame.Function
		}
		if frame.Function == "runtime.gopanic" {
			panicking = true
		}
		if !more {
			break
		}
	}
	return "unknown", 0, "unknown"
}
