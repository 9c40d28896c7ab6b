package policy

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/signalforge/decisioncore/metrics"
	"github.com/signalforge/decisioncore/telemetry"
)

// CircuitBreakerBackend wraps another Backend (normally RemoteBackend) with
// a gobreaker.CircuitBreaker, per spec §4.5: after N consecutive failures
// within a window the backend is skipped for a cool-off period, then probed
// once. Modeled on the gobreaker wiring in
// other_examples/53d3f3fa_smartramana-developer-mesh__pkg-intelligence-service.go.go.
type CircuitBreakerBackend struct {
	inner Backend
	cb    *gobreaker.CircuitBreaker
	log   telemetry.Logger
}

// CircuitBreakerConfig configures the breaker thresholds.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that trips the
	// breaker. Zero selects 5 (spec §4.5 default).
	MaxFailures uint32
	// CoolOff is how long the breaker stays open before allowing a single
	// probe request through. Zero selects 60s (spec §4.5 default).
	CoolOff time.Duration
	// Metrics records circuit_breaker_open{backend} (spec §4.12). Nil
	// selects a no-op recorder.
	Metrics *metrics.Recorder
}

// NewCircuitBreakerBackend wraps inner with a circuit breaker.
func NewCircuitBreakerBackend(name string, inner Backend, cfg CircuitBreakerConfig, log telemetry.Logger) *CircuitBreakerBackend {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	coolOff := cfg.CoolOff
	if coolOff <= 0 {
		coolOff = 60 * time.Second
	}
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // one probe request allowed while half-open
		Timeout:     coolOff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			log.Info(context.Background(), "policy backend circuit breaker state change",
				"backend", cbName, "from", from.String(), "to", to.String())
			rec.CircuitBreakerOpen(cbName, to == gobreaker.StateOpen)
		},
	}

	return &CircuitBreakerBackend{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
		log:   log,
	}
}

// Get routes the lookup through the circuit breaker. When the breaker is
// open, gobreaker.ErrOpenState is translated into ok=false, nil error so the
// Store falls straight through to the next backend without counting it as a
// failure of the chain itself.
func (b *CircuitBreakerBackend) Get(ctx context.Context, name string, policyCtx map[string]any) (Policy, bool, error) {
	type result struct {
		policy Policy
		ok     bool
	}

	res, err := b.cb.Execute(func() (any, error) {
		p, ok, err := b.inner.Get(ctx, name, policyCtx)
		if err != nil {
			return result{}, err
		}
		return result{policy: p, ok: ok}, nil
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	r := res.(result)
	return r.policy, r.ok, nil
}
