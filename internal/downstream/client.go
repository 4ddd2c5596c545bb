// Package downstream issues service-to-service HTTP calls. Every call carries
// the caller's correlation identity and trace context, is attempted exactly
// once under a bounded wait, and fails with a classified *CallError.
package downstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sreedhargs89/observability-advanced/internal/correlation"
)

type Kind int

const (
	// KindOther covers any failure that is neither a timeout nor a failure
	// to reach the destination.
	KindOther Kind = iota
	KindTimeout
	KindUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	default:
		return "other"
	}
}

type CallError struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

type Request struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	http *http.Client
}

func NewClient(tp trace.TracerProvider, prop propagation.TextMapPropagator) *Client {
	return &Client{
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithPropagators(prop),
			),
		},
	}
}

// Do performs req once, waiting at most the deadline of ctx. The response
// body is read in full before returning so the wait bounds the whole call.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &CallError{Kind: KindOther, URL: req.URL, Err: err}
	}
	for k, v := range req.Header {
		httpReq.Header[k] = v
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	correlation.Inject(ctx, httpReq.Header)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &CallError{Kind: classify(err), URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Kind: classify(err), URL: req.URL, Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUnreachable
	}
	return KindOther
}

// KindOf reports the classification of err, or KindOther when err is not a
// *CallError.
func KindOf(err error) Kind {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Kind
	}
	return KindOther
}
