package response

import (
	"net/http"

	appctx "github.com/mosswell/world-service/internal/pkg/context"
)

// RequestIDFromRequest resolves the request id the middleware assigned,
// falling back to whatever the caller sent when the middleware isn't
// mounted (direct handler tests, mostly).
func RequestIDFromRequest(r *http.Request) string {
	if id := appctx.GetRequestID(r.Context()); id != "" {
		return id
	}
	if v := r.Header.Get("X-Request-Id"); v != "" {
		return v
	}
	return r.Header.Get("X-Request-ID")
}
