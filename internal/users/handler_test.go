package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sreedhargs89/observability-advanced/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router   *gin.Engine
	handler  *Handler
	store    *store.Memory[User]
	recorder *tracetest.SpanRecorder
	hook     *logtest.Hook
}

func newFixture() *fixture {
	logger, hook := logtest.NewNullLogger()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	st := store.NewMemory[User]()

	h := NewHandler(st, tp.Tracer("user-service"), logger.WithField("service", "user-service"), prometheus.NewRegistry())
	h.now = func() time.Time { return time.Unix(1700000000, 500000000) }

	r := gin.New()
	h.RegisterRoutes(r)
	return &fixture{router: r, handler: h, store: st, recorder: recorder, hook: hook}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) lastSpan(t *testing.T) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := f.recorder.Ended()
	require.NotEmpty(t, spans)
	return spans[len(spans)-1]
}

func TestCreateUser(t *testing.T) {
	t.Run("Creates a user with the next identity", func(t *testing.T) {
		f := newFixture()

		w := f.do(http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
		require.Equal(t, http.StatusCreated, w.Code)

		var user User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
		assert.Equal(t, User{ID: "1", Name: "Ada", Email: "ada@example.com", CreatedAt: 1700000000.5}, user)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.handler.created))
		assert.Equal(t, "create_user", f.lastSpan(t).Name())

		w = f.do(http.MethodPost, "/users", `{"name":"Bob","email":"bob@example.com"}`)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
		assert.Equal(t, "2", user.ID)
	})

	t.Run("Missing fields return 400", func(t *testing.T) {
		f := newFixture()

		for _, body := range []string{`{"name":"Ada"}`, `{"email":"a@b.c"}`, `not json`} {
			w := f.do(http.MethodPost, "/users", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			assert.JSONEq(t, `{"error":"Missing required fields: name, email"}`, w.Body.String())
		}
		assert.Zero(t, f.store.Len())
		assert.Zero(t, testutil.ToFloat64(f.handler.created))
		assert.Equal(t, logrus.ErrorLevel, f.hook.LastEntry().Level)
	})
}

func TestGetUser(t *testing.T) {
	f := newFixture()
	f.do(http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)

	t.Run("Existing user", func(t *testing.T) {
		w := f.do(http.MethodGet, "/users/1", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ada@example.com")
	})

	t.Run("Unknown user is a warning, not an error", func(t *testing.T) {
		w := f.do(http.MethodGet, "/users/99", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())
		assert.Equal(t, logrus.WarnLevel, f.hook.LastEntry().Level)
		assert.Equal(t, "get_user", f.lastSpan(t).Name())
	})
}

func TestListUsers(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	f.do(http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	f.do(http.MethodPost, "/users", `{"name":"Bob","email":"bob@example.com"}`)

	var users []User
	w = f.do(http.MethodGet, "/users", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "Ada", users[0].Name)
	assert.Equal(t, "Bob", users[1].Name)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture()
	f.do(http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)

	w := f.do(http.MethodDelete, "/users/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"User deleted"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/users/1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/users/1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/users/404", "").Code)
}
