package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedBackend is backend 3: a Redis-backed policy cache shared across
// orchestrator replicas, modeled on the Redis caching pattern used elsewhere
// in the pack (schema caches keyed by name, JSON-encoded values, a
// configurable key prefix and TTL).
type DistributedBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// DefaultDistributedTTL bounds how long a policy document written by
// another process may be served before a fresh write is required.
const DefaultDistributedTTL = 5 * time.Minute

// NewDistributedBackend constructs a DistributedBackend over an existing
// Redis client.
func NewDistributedBackend(client *redis.Client, prefix string) *DistributedBackend {
	if prefix == "" {
		prefix = "decisioncore:policy:"
	}
	return &DistributedBackend{client: client, prefix: prefix, ttl: DefaultDistributedTTL}
}

func (b *DistributedBackend) key(name string) string {
	return b.prefix + name
}

// Get reads the policy document for name from Redis. A cache miss
// (redis.Nil) is reported as ok=false with no error; any other Redis error
// is returned so the caller can fall through to the next backend.
func (b *DistributedBackend) Get(ctx context.Context, name string, _ map[string]any) (Policy, bool, error) {
	raw, err := b.client.Get(ctx, b.key(name)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read policy %q from distributed cache: %w", name, err)
	}
	var p Policy
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("decode policy %q from distributed cache: %w", name, err)
	}
	if len(p) == 0 {
		return nil, false, nil
	}
	return p, true, nil
}

// Set publishes a policy document to Redis so other replicas observe it
// without each hitting the remote backend. Not part of the Backend
// interface: this is an out-of-band write path used by whatever process
// owns policy distribution.
func (b *DistributedBackend) Set(ctx context.Context, name string, p Policy) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode policy %q for distributed cache: %w", name, err)
	}
	if err := b.client.Set(ctx, b.key(name), raw, b.ttl).Err(); err != nil {
		return fmt.Errorf("write policy %q to distributed cache: %w", name, err)
	}
	return nil
}
