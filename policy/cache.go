package policy

import (
	"sync"
	"time"

	"github.com/signalforge/decisioncore/decision"
)

// ttlCache is an in-process, TTL-evicting cache of resolved policy lookups,
// keyed by (name, canonicalized ctx). Modeled on the MemoryCache pattern in
// runtime/registry/cache.go, minus the background-refresh machinery that
// component doesn't need here.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry
	ttl     time.Duration
}

type ttlEntry struct {
	policy    Policy
	expiresAt time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{entries: make(map[string]ttlEntry), ttl: ttl}
}

func cacheKey(name string, policyCtx map[string]any) string {
	return name + "\x00" + string(decision.CanonicalJSON(policyCtx))
}

func (c *ttlCache) get(name string, policyCtx map[string]any) (Policy, bool) {
	key := cacheKey(name, policyCtx)
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.policy, true
}

func (c *ttlCache) set(name string, policyCtx map[string]any, p Policy) {
	key := cacheKey(name, policyCtx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ttlEntry{policy: p, expiresAt: time.Now().Add(c.ttl)}
}
