// Package request assigns each request a correlation ID.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/requestcontext"
)

// RequestIDHeader is honored when the caller supplies its own correlation ID.
const RequestIDHeader = "X-Request-Id"

// RequestID ensures every request carries a correlation ID in context and on
// the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
