package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

const redisKeyPrefix = "vehicle:identity:"

// RedisCache shares the identity cache across instances. Entries carry the
// upstream FetchedAt so every instance applies the same staleness gate.
type RedisCache struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisCache creates a Redis-backed identity cache.
func NewRedisCache(client *redis.Client, retention time.Duration) *RedisCache {
	if retention == 0 {
		retention = defaultRetention
	}
	return &RedisCache{client: client, retention: retention}
}

type redisEntry struct {
	Document  Document  `json:"document"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (c *RedisCache) Lookup(ctx context.Context, reg domain.Registration) (*CachedIdentity, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+reg.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("identity cache get: %w", err)
	}
	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("identity cache decode: %w", err)
	}
	return &CachedIdentity{
		Registration: reg,
		Document:     entry.Document,
		FetchedAt:    entry.FetchedAt,
	}, nil
}

func (c *RedisCache) Put(ctx context.Context, entry *CachedIdentity) error {
	raw, err := json.Marshal(redisEntry{Document: entry.Document, FetchedAt: entry.FetchedAt})
	if err != nil {
		return fmt.Errorf("identity cache encode: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+entry.Registration.String(), raw, c.retention).Err(); err != nil {
		return fmt.Errorf("identity cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, reg domain.Registration) error {
	if err := c.client.Del(ctx, redisKeyPrefix+reg.String()).Err(); err != nil {
		return fmt.Errorf("identity cache delete: %w", err)
	}
	return nil
}
