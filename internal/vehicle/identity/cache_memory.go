package identity

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// defaultRetention is how long entries stay resident before eviction. The
// unlock flow enforces its own 24h staleness gate on FetchedAt, so the cache
// TTL only bounds memory, not correctness.
const defaultRetention = 48 * time.Hour

// MemoryCache is an in-process identity cache with explicit TTL and
// invalidation. State is process-wide but owned by this value, never ambient.
type MemoryCache struct {
	entries *gocache.Cache
}

// NewMemoryCache creates a memory-backed identity cache. A zero retention
// falls back to the default.
func NewMemoryCache(retention time.Duration) *MemoryCache {
	if retention == 0 {
		retention = defaultRetention
	}
	return &MemoryCache{
		entries: gocache.New(retention, retention/2),
	}
}

func (c *MemoryCache) Lookup(_ context.Context, reg domain.Registration) (*CachedIdentity, error) {
	v, ok := c.entries.Get(reg.String())
	if !ok {
		return nil, nil
	}
	entry := v.(CachedIdentity)
	return &entry, nil
}

func (c *MemoryCache) Put(_ context.Context, entry *CachedIdentity) error {
	c.entries.SetDefault(entry.Registration.String(), *entry)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, reg domain.Registration) error {
	c.entries.Delete(reg.String())
	return nil
}
