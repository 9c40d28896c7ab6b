package policy

import "context"

// Policy is the decoded result of a policy lookup: an opaque key/value
// document whose shape is understood by the caller (cooldown_ms,
// session_windows, signal_filter rules, confidence thresholds, max exposure,
// kill-zone vetoes, notification gating — spec §4.5).
type Policy map[string]any

// Backend resolves a named policy for a given context. It returns ok=false
// when the backend has no opinion for (name, ctx) so the Store can fall
// through to the next backend in the chain (spec §4.5: "the first to return
// a non-empty result wins").
type Backend interface {
	Get(ctx context.Context, name string, policyCtx map[string]any) (Policy, bool, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, name string, policyCtx map[string]any) (Policy, bool, error)

func (f BackendFunc) Get(ctx context.Context, name string, policyCtx map[string]any) (Policy, bool, error) {
	return f(ctx, name, policyCtx)
}

// StaticBackend is backend 1: an in-process configuration map, keyed by
// policy name.
type StaticBackend struct {
	policies map[string]Policy
}

// NewStaticBackend constructs a StaticBackend from a fixed map. The map is
// not copied; callers must not mutate it concurrently with lookups.
func NewStaticBackend(policies map[string]Policy) *StaticBackend {
	if policies == nil {
		policies = make(map[string]Policy)
	}
	return &StaticBackend{policies: policies}
}

func (b *StaticBackend) Get(_ context.Context, name string, _ map[string]any) (Policy, bool, error) {
	p, ok := b.policies[name]
	if !ok || len(p) == 0 {
		return nil, false, nil
	}
	return p, true, nil
}

// DefaultBackend is backend 4: compiled-in sensible values, the last link in
// the chain. It answers for the policy names in Defaults() plus any
// overrides; for any other name it reports ok=false.
type DefaultBackend struct {
	defaults map[string]Policy
}

// NewDefaultBackend constructs a DefaultBackend. Each entry of overrides
// replaces the built-in policy of the same name supplied by Defaults().
func NewDefaultBackend(overrides map[string]Policy) *DefaultBackend {
	merged := Defaults()
	for name, p := range overrides {
		merged[name] = p
	}
	return &DefaultBackend{defaults: merged}
}

func (b *DefaultBackend) Get(_ context.Context, name string, _ map[string]any) (Policy, bool, error) {
	p, ok := b.defaults[name]
	if !ok {
		return nil, false, nil
	}
	return p, true, nil
}

// Defaults returns the compiled-in policy values used when no other backend
// in the chain has an opinion (spec §4.5 backend 4).
func Defaults() map[string]Policy {
	return map[string]Policy{
		"cooldown": {
			"default_ms": int64(0),
		},
		"session_window": {
			"ranges": []any{},
		},
		"signal_filter": {
			"min_confidence": 0.0,
			"blocklist":      []any{},
		},
	}
}
