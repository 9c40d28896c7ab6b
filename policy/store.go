// Package policy implements the policy store (spec §4.5, component C5): a
// get_policy(name, ctx) lookup backed by a fixed chain of backends, with
// circuit-breaker protection around the remote backend and a TTL cache in
// front of the whole chain.
package policy

import (
	"context"
	"strconv"
	"time"

	"github.com/signalforge/decisioncore/metrics"
	"github.com/signalforge/decisioncore/telemetry"
)

// DefaultResultTTL is the default cache TTL for resolved lookups (spec
// §4.5: "cached for a TTL (default 30s)").
const DefaultResultTTL = 30 * time.Second

// Store resolves named policies through a backend chain, caching results.
type Store struct {
	backends []Backend
	cache    *ttlCache
	metrics  *metrics.Recorder
	log      telemetry.Logger
}

// Options configures a Store.
type Options struct {
	// ResultTTL is the cache TTL for resolved lookups. Zero selects
	// DefaultResultTTL.
	ResultTTL time.Duration
	Metrics   *metrics.Recorder
	Logger    telemetry.Logger
}

// NewStore constructs a Store over an ordered backend chain. Backends are
// tried in the order given; callers should pass them in the spec §4.5 order
// (static, circuit-breaker-wrapped remote, distributed, default).
func NewStore(backends []Backend, opts Options) *Store {
	ttl := opts.ResultTTL
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Store{
		backends: backends,
		cache:    newTTLCache(ttl),
		metrics:  rec,
		log:      log,
	}
}

// Get resolves name against policyCtx, trying the backend chain in order
// and caching the first non-empty result. A failure in one backend is
// logged and counted, then the chain falls through to the next backend
// (spec §4.5). If every backend errors or returns empty, Get returns an
// empty Policy and no error: callers apply their own built-in fallback
// semantics on top of an empty result.
func (s *Store) Get(ctx context.Context, name string, policyCtx map[string]any) (Policy, error) {
	if p, ok := s.cache.get(name, policyCtx); ok {
		s.metrics.PolicyCacheHit(name)
		return p, nil
	}
	s.metrics.PolicyCacheMiss(name)

	for i, backend := range s.backends {
		p, ok, err := backend.Get(ctx, name, policyCtx)
		if err != nil {
			s.metrics.PolicyBackendFailure(strconv.Itoa(i))
			s.log.Warn(ctx, "policy backend failed, falling through",
				"policy", name, "backend", i, "error", err.Error())
			continue
		}
		if !ok || len(p) == 0 {
			continue
		}
		s.cache.set(name, policyCtx, p)
		return p, nil
	}

	return Policy{}, nil
}
