// Package ratelimit throttles unlock requests per requester. The unlock flow
// fans out to a metered upstream provider, so a single noisy client must not
// be able to burn the shared quota.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether a keyed caller may proceed. Implementations are
// safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}
