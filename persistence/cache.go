package persistence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache as a best-effort write-through: a short-TTL
// decision_id → summary entry (spec §4.8 step 3), grounded on the same
// Redis caching idiom used by policy.DistributedBackend.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache constructs a RedisCache over an existing Redis client.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "decisioncore:decision:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// SetSummary writes summary under decisionID with the given TTL. Spec §4.8
// step 3: "failure here is swallowed" — callers should log the returned
// error but must never let it affect EventResult.
func (c *RedisCache) SetSummary(ctx context.Context, decisionID string, summary []byte, ttlMs int64) error {
	return c.client.Set(ctx, c.prefix+decisionID, summary, time.Duration(ttlMs)*time.Millisecond).Err()
}
