// Package dedup implements the deduplication cache (spec §4.2, component
// C2): a bounded LRU cache keyed by a stable fingerprint over
// (correlation_id, symbol, signal), used by the orchestrator to discard
// repeated events within a TTL window.
package dedup

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/event"
)

const (
	// DefaultTTL is the default dedup window (spec §4.2).
	DefaultTTL = 60 * time.Second
	// DefaultMaxEntries is the default bound on the dedup cache (spec §4.2).
	DefaultMaxEntries = 100_000
)

// Cache is a bounded, TTL-evicting LRU deduplication cache. It is safe for
// concurrent use.
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	cap   int
	list  *list.List
	index map[string]*list.Element
}

type cacheEntry struct {
	fingerprint string
	expiresAt   time.Time
}

// Options configures a Cache.
type Options struct {
	// TTL is the window within which two events with the same fingerprint
	// are considered duplicates. Zero selects DefaultTTL.
	TTL time.Duration
	// MaxEntries bounds the cache size; the least-recently-used fingerprint
	// is evicted once the bound is exceeded. Zero selects DefaultMaxEntries.
	MaxEntries int
}

// New constructs a Cache with the given options.
func New(opts Options) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cap := opts.MaxEntries
	if cap <= 0 {
		cap = DefaultMaxEntries
	}
	return &Cache{
		ttl:   ttl,
		cap:   cap,
		list:  list.New(),
		index: make(map[string]*list.Element),
	}
}

// Fingerprint computes a stable digest over (correlation_id, symbol, signal),
// with signal canonicalized (key-sorted) so structurally equivalent payloads
// collide regardless of field order (spec §4.2).
func Fingerprint(ev event.Event) string {
	h := sha256.New()
	h.Write([]byte(ev.CorrelationID))
	h.Write([]byte{0})
	h.Write([]byte(ev.Symbol))
	h.Write([]byte{0})
	h.Write(decision.CanonicalJSON(ev.Signal))
	return hex.EncodeToString(h.Sum(nil))
}

// Seen reports whether the fingerprint was already admitted within the TTL
// window. If not, it is recorded so a subsequent call within the window
// returns true (the orchestrator calls this once per event; spec §8 round
// trip: "first call admits, second call is discarded as duplicate").
func (c *Cache) Seen(fingerprint string) bool {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[fingerprint]; ok {
		entry := el.Value.(cacheEntry)
		if entry.expiresAt.After(now) {
			c.list.MoveToFront(el)
			return true
		}
		c.list.Remove(el)
		delete(c.index, fingerprint)
	}

	el := c.list.PushFront(cacheEntry{fingerprint: fingerprint, expiresAt: now.Add(c.ttl)})
	c.index[fingerprint] = el
	if c.list.Len() > c.cap {
		lru := c.list.Back()
		if lru != nil {
			entry := lru.Value.(cacheEntry)
			delete(c.index, entry.fingerprint)
			c.list.Remove(lru)
		}
	}
	return false
}

// Len reports the number of entries currently tracked (including any not
// yet lazily evicted).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}
