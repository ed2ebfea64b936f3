// Package requesttime provides middleware for request-scoped time. Every
// operation within a single HTTP request observes the same "now", keeping
// audit events and domain timestamps consistent.
package requesttime

import (
	"net/http"
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and stores
// it in the context. Read it back with requestcontext.Now.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
