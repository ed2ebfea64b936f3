package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/httputil"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/requestcontext"
)

// Middleware enforces a Limiter per requester on the routes it wraps.
type Middleware struct {
	limiter Limiter
	logger  *slog.Logger
}

// NewMiddleware wraps a Limiter for use in an HTTP chain.
func NewMiddleware(limiter Limiter, logger *slog.Logger) *Middleware {
	return &Middleware{limiter: limiter, logger: logger}
}

// Limit throttles by account, then guest, then client IP. Limiter failures
// fail open: an unhealthy limiter backend must not take the API down with it.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := limitKey(ctx)

		result, err := m.limiter.Allow(ctx, key)
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			m.logger.WarnContext(ctx, "request rate limited",
				"request_id", requestcontext.RequestID(ctx))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, slow down"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// limitKey buckets by the strongest identity available. Requests with no
// identity at all share one IP bucket, so an unidentified scraper cannot
// spread load across fresh buckets.
func limitKey(ctx context.Context) string {
	if accountID := requestcontext.AccountID(ctx); !accountID.IsNil() {
		return "account:" + accountID.String()
	}
	if guestID := requestcontext.GuestID(ctx); !guestID.IsNil() {
		return "guest:" + guestID.String()
	}
	return "ip:" + requestcontext.ClientIP(ctx)
}
