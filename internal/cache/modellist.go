package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ModelListCache stores serialized tier-resolved model lists keyed by tier.
// The catalog changes rarely, so reads are served from Redis between sync
// runs and operator edits.
type ModelListCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewModelListCache(client *redis.Client, ttl time.Duration) *ModelListCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ModelListCache{client: client, ttl: ttl}
}

func (c *ModelListCache) Get(ctx context.Context, tier string) ([]byte, bool) {
	if c == nil || c.client == nil || tier == "" {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.prefixed(tier)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *ModelListCache) Set(ctx context.Context, tier string, value []byte) {
	if c == nil || c.client == nil || tier == "" || len(value) == 0 {
		return
	}
	c.client.Set(ctx, c.prefixed(tier), value, c.ttl)
}

// Invalidate drops every cached tier list. Called after a sync run completes
// or an operator changes catalog status or access flags.
func (c *ModelListCache) Invalidate(ctx context.Context, tiers ...string) error {
	if c == nil || c.client == nil || len(tiers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		keys = append(keys, c.prefixed(tier))
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *ModelListCache) prefixed(tier string) string {
	return "models:" + tier
}
