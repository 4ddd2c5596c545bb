package telemetry

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/sreedhargs89/observability-advanced/internal/correlation"
)

// NewLogger builds the JSON logger for a service. Every entry carries the
// service name; entries created with WithContext also carry correlation_id
// and trace_id.
func NewLogger(service, level string) *logrus.Entry {
	return newLogger(os.Stdout, service, level)
}

func newLogger(out io.Writer, service, level string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.AddHook(ContextHook{})

	return l.WithField("service", service)
}

// ContextHook copies the request identity out of the entry's context.
type ContextHook struct{}

func (ContextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (ContextHook) Fire(e *logrus.Entry) error {
	if e.Context == nil {
		setDefault(e, "correlation_id", "startup")
		setDefault(e, "trace_id", "no-trace")
		return nil
	}

	id, ok := correlation.FromContext(e.Context)
	if !ok {
		id = "unknown"
	}
	setDefault(e, "correlation_id", id)

	traceID := "no-trace"
	if sc := trace.SpanContextFromContext(e.Context); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	setDefault(e, "trace_id", traceID)
	return nil
}

func setDefault(e *logrus.Entry, key string, value any) {
	if _, ok := e.Data[key]; !ok {
		e.Data[key] = value
	}
}
