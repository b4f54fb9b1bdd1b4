// Package middleware holds the HTTP middleware chain: request ids,
// security headers, access logging and JWT verification.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	appctx "github.com/mosswell/world-service/internal/pkg/context"
)

const HeaderXRequestID = "X-Request-Id"

// RequestID adopts the caller's request id or mints one, echoes it on the
// response, and threads it through the context for logs and error bodies.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderXRequestID)

		if reqID == "" {
			reqID = uuid.NewString()
		}

		w.Header().Set(HeaderXRequestID, reqID)

		ctx := appctx.WithRequestID(r.Context(), reqID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
