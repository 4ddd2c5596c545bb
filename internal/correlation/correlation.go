// Package correlation carries the per-request correlation identity from the
// inbound request, through the handler's context, onto every outbound call.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const Header = "X-Correlation-ID"

type ctxKey struct{}

// Derive returns the inbound correlation header when it is set and
// non-empty, otherwise a freshly generated identifier.
func Derive(h http.Header) string {
	if id := h.Get(Header); id != "" {
		return id
	}
	return uuid.NewString()
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext retrieves the correlation identity stored by WithID.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Inject copies the request's correlation identity onto outbound headers.
// Headers are left untouched when ctx carries no identity.
func Inject(ctx context.Context, h http.Header) {
	if id, ok := FromContext(ctx); ok {
		h.Set(Header, id)
	}
}
