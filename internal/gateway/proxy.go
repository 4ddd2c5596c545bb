// Package gateway forwards external requests to the backend services.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sreedhargs89/observability-advanced/internal/downstream"
)

// Caller issues a single outbound call.
type Caller interface {
	Do(ctx context.Context, req downstream.Request) (*downstream.Response, error)
}

type Result struct {
	Status      int
	Body        []byte
	ContentType string
}

type Proxy struct {
	caller  Caller
	tracer  trace.Tracer
	log     *logrus.Entry
	timeout time.Duration
}

func NewProxy(caller Caller, tracer trace.Tracer, log *logrus.Entry, timeout time.Duration) *Proxy {
	return &Proxy{caller: caller, tracer: tracer, log: log, timeout: timeout}
}

// Forward sends one request to baseURL+path and maps the outcome to the
// response the gateway returns. It never retries.
func (p *Proxy) Forward(ctx context.Context, baseURL, path, method string, body []byte) Result {
	ctx, span := p.tracer.Start(ctx, "proxy_to_"+hostOf(baseURL))
	defer span.End()

	target := baseURL + path
	span.SetAttributes(
		attribute.String("http.url", target),
		attribute.String("http.method", method),
	)
	log := p.log.WithContext(ctx).WithFields(logrus.Fields{
		"url":    target,
		"method": method,
	})

	switch method {
	case http.MethodGet, http.MethodDelete:
		body = nil
	case http.MethodPost:
	default:
		log.Warn("Method not supported by proxy")
		return errorResult(http.StatusMethodNotAllowed, "Method not supported")
	}

	log.Debug("Proxying request to backend")

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.caller.Do(callCtx, downstream.Request{Method: method, URL: target, Body: body})
	if err != nil {
		span.SetAttributes(attribute.Bool("error", true))
		switch downstream.KindOf(err) {
		case downstream.KindTimeout:
			span.SetStatus(codes.Error, "backend timeout")
			log.Error("Backend service timeout")
			return errorResult(http.StatusGatewayTimeout, "Service timeout")
		case downstream.KindUnreachable:
			span.SetStatus(codes.Error, "backend unreachable")
			log.Error("Cannot connect to backend service")
			return errorResult(http.StatusServiceUnavailable, "Service unavailable")
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.WithError(err).Error("Error proxying request")
			return errorResult(http.StatusInternalServerError, "Internal server error")
		}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	log.WithField("status_code", resp.StatusCode).Debug("Received response from backend")

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	return Result{Status: resp.StatusCode, Body: resp.Body, ContentType: contentType}
}

func errorResult(status int, message string) Result {
	body, _ := json.Marshal(map[string]string{"error": message})
	return Result{Status: status, Body: body, ContentType: "application/json; charset=utf-8"}
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return baseURL
	}
	return u.Hostname()
}
