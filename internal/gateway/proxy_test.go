package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sreedhargs89/observability-advanced/internal/correlation"
	"github.com/sreedhargs89/observability-advanced/internal/downstream"
	"github.com/sreedhargs89/observability-advanced/internal/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingCaller struct {
	calls int
	resp  *downstream.Response
	err   error
}

func (c *countingCaller) Do(ctx context.Context, req downstream.Request) (*downstream.Response, error) {
	c.calls++
	return c.resp, c.err
}

type harness struct {
	proxy    *Proxy
	recorder *tracetest.SpanRecorder
	tp       *sdktrace.TracerProvider
}

func newHarness(caller Caller, timeout time.Duration) *harness {
	logger, _ := logtest.NewNullLogger()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	if caller == nil {
		caller = downstream.NewClient(tp, propagation.TraceContext{})
	}
	return &harness{
		proxy:    NewProxy(caller, tp.Tracer("gateway"), logger.WithField("service", "api-gateway"), timeout),
		recorder: recorder,
		tp:       tp,
	}
}

func (h *harness) proxySpan(t *testing.T) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range h.recorder.Ended() {
		if strings.HasPrefix(s.Name(), "proxy_to_") {
			return s
		}
	}
	t.Fatal("no proxy span recorded")
	return nil
}

func attr(s sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "http://" + addr
}

func TestProxy_Forward(t *testing.T) {
	t.Run("Passes backend status and body through", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"User not found"}`))
		}))
		defer backend.Close()

		h := newHarness(nil, time.Second)
		res := h.proxy.Forward(context.Background(), backend.URL, "/users/42", http.MethodGet, nil)

		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.JSONEq(t, `{"error":"User not found"}`, string(res.Body))
		assert.Equal(t, "application/json", res.ContentType)

		span := h.proxySpan(t)
		assert.Equal(t, "proxy_to_127.0.0.1", span.Name())
		status, ok := attr(span, "http.status_code")
		require.True(t, ok)
		assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())
		u, _ := attr(span, "http.url")
		assert.Equal(t, backend.URL+"/users/42", u.AsString())
	})

	t.Run("Propagates correlation id to the backend", func(t *testing.T) {
		var got string
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get(correlation.Header)
			w.WriteHeader(http.StatusOK)
		}))
		defer backend.Close()

		h := newHarness(nil, time.Second)
		ctx := correlation.WithID(context.Background(), "abc")
		h.proxy.Forward(ctx, backend.URL, "/orders", http.MethodGet, nil)

		assert.Equal(t, "abc", got)
	})

	t.Run("Unreachable backend returns 503", func(t *testing.T) {
		h := newHarness(nil, time.Second)
		res := h.proxy.Forward(context.Background(), closedAddr(t), "/users", http.MethodGet, nil)

		assert.Equal(t, http.StatusServiceUnavailable, res.Status)
		assert.JSONEq(t, `{"error":"Service unavailable"}`, string(res.Body))
		errAttr, _ := attr(h.proxySpan(t), "error")
		assert.True(t, errAttr.AsBool())
		assert.Equal(t, codes.Error, h.proxySpan(t).Status().Code)
	})

	t.Run("Backend slower than the bound returns 504", func(t *testing.T) {
		release := make(chan struct{})
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer backend.Close()
		defer close(release)

		h := newHarness(nil, 50*time.Millisecond)
		res := h.proxy.Forward(context.Background(), backend.URL, "/orders", http.MethodGet, nil)

		assert.Equal(t, http.StatusGatewayTimeout, res.Status)
		assert.JSONEq(t, `{"error":"Service timeout"}`, string(res.Body))
		errAttr, _ := attr(h.proxySpan(t), "error")
		assert.True(t, errAttr.AsBool())
	})

	t.Run("Other failures return 500 and record the error", func(t *testing.T) {
		caller := &countingCaller{err: &downstream.CallError{Kind: downstream.KindOther, Err: errors.New("tls handshake")}}
		h := newHarness(caller, time.Second)

		res := h.proxy.Forward(context.Background(), "http://user-service:8001", "/users", http.MethodGet, nil)

		assert.Equal(t, http.StatusInternalServerError, res.Status)
		span := h.proxySpan(t)
		assert.Equal(t, "proxy_to_user-service", span.Name())
		require.NotEmpty(t, span.Events())
		assert.Equal(t, "exception", span.Events()[0].Name)
	})

	t.Run("Unsupported method makes no outbound call", func(t *testing.T) {
		caller := &countingCaller{}
		h := newHarness(caller, time.Second)

		res := h.proxy.Forward(context.Background(), "http://user-service:8001", "/users/1", http.MethodPut, []byte(`{}`))

		assert.Equal(t, http.StatusMethodNotAllowed, res.Status)
		assert.JSONEq(t, `{"error":"Method not supported"}`, string(res.Body))
		assert.Zero(t, caller.calls)
	})

	t.Run("Exactly one attempt per call", func(t *testing.T) {
		caller := &countingCaller{err: &downstream.CallError{Kind: downstream.KindUnreachable, Err: errors.New("refused")}}
		h := newHarness(caller, time.Second)

		h.proxy.Forward(context.Background(), "http://order-service:8002", "/orders", http.MethodPost, []byte(`{}`))

		assert.Equal(t, 1, caller.calls)
	})
}

func newGateway(t *testing.T, backends Backends, timeout time.Duration) *gin.Engine {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	log := logger.WithField("service", "api-gateway")
	tp := sdktrace.NewTracerProvider()
	prop := propagation.TraceContext{}

	r := server.New(server.Options{
		ServiceName:    "api-gateway",
		Log:            log,
		TracerProvider: tp,
		Propagator:     prop,
		Registry:       prometheus.NewRegistry(),
	})
	proxy := NewProxy(downstream.NewClient(tp, prop), tp.Tracer("api-gateway"), log, timeout)
	RegisterRoutes(r, proxy, backends)
	return r
}

func TestRoutes(t *testing.T) {
	var gotPath, gotMethod, gotBody, gotCorrelation string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotMethod = r.Method
		gotCorrelation = r.Header.Get(correlation.Header)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer backend.Close()

	r := newGateway(t, Backends{UserServiceURL: backend.URL, OrderServiceURL: closedAddr(t)}, time.Second)

	t.Run("Forwards users requests unchanged", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users?source=test", strings.NewReader(`{"name":"a","email":"a@b.c"}`))
		req.Header.Set(correlation.Header, "abc")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"id":"1"}`, w.Body.String())
		assert.Equal(t, "abc", w.Header().Get(correlation.Header))
		assert.Equal(t, "/users?source=test", gotPath)
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "abc", gotCorrelation)
		assert.Equal(t, `{"name":"a","email":"a@b.c"}`, gotBody)
	})

	t.Run("Generated correlation id reaches the backend and the caller", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/users/3", nil))

		echoed := w.Header().Get(correlation.Header)
		assert.NotEmpty(t, echoed)
		assert.Equal(t, echoed, gotCorrelation)
		assert.Equal(t, "/users/3", gotPath)
	})

	t.Run("Unreachable order service returns 503", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotEmpty(t, w.Header().Get(correlation.Header))
	})

	t.Run("Unsupported method returns 405", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/users/1", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("Index lists endpoints", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "POST /orders")
	})
}
