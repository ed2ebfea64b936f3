package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a sliding-window limiter backed by per-key timestamp
// lists. Single-process only; deployments with more than one replica should
// use the Redis limiter.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	entries map[string][]time.Time
}

// MemoryLimiterOption configures a MemoryLimiter.
type MemoryLimiterOption func(*MemoryLimiter)

// WithMemoryLimiterClock overrides the time source, for tests.
func WithMemoryLimiterClock(clock func() time.Time) MemoryLimiterOption {
	return func(l *MemoryLimiter) {
		l.clock = clock
	}
}

// NewMemoryLimiter allows up to limit calls per key within the window.
func NewMemoryLimiter(limit int, window time.Duration, opts ...MemoryLimiterOption) *MemoryLimiter {
	l := &MemoryLimiter{
		limit:   limit,
		window:  window,
		clock:   time.Now,
		entries: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	cutoff := now.Add(-l.window)

	kept := l.entries[key][:0]
	for _, ts := range l.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.entries[key] = kept
		return &Result{
			Allowed:   false,
			Limit:     l.limit,
			Remaining: 0,
			ResetAt:   kept[0].Add(l.window),
		}, nil
	}

	kept = append(kept, now)
	l.entries[key] = kept
	return &Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(kept),
		ResetAt:   kept[0].Add(l.window),
	}, nil
}
