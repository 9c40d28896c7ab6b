package policy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/metrics"
	"github.com/signalforge/decisioncore/policy"
	"github.com/signalforge/decisioncore/telemetry"
)

type fakeGaugeMetrics struct {
	gauges map[string]float64
}

func (f *fakeGaugeMetrics) IncCounter(string, float64, ...string)      {}
func (f *fakeGaugeMetrics) RecordTimer(string, time.Duration, ...string) {}
func (f *fakeGaugeMetrics) RecordGauge(name string, v float64, _ ...string) {
	if f.gauges == nil {
		f.gauges = map[string]float64{}
	}
	f.gauges[name] = v
}

var _ telemetry.Metrics = (*fakeGaugeMetrics)(nil)

func TestCircuitBreakerBackend_OpensAfterConsecutiveFailures(t *testing.T) {
	failing := policy.BackendFunc(func(_ context.Context, _ string, _ map[string]any) (policy.Policy, bool, error) {
		return nil, false, errors.New("remote unavailable")
	})
	cb := policy.NewCircuitBreakerBackend("remote", failing, policy.CircuitBreakerConfig{
		MaxFailures: 2,
		CoolOff:     time.Hour,
	}, nil)

	_, _, err := cb.Get(context.Background(), "cooldown", nil)
	require.Error(t, err)
	_, _, err = cb.Get(context.Background(), "cooldown", nil)
	require.Error(t, err)

	// Breaker should now be open: Get must not return the inner error, and
	// must report ok=false without an error so the store falls through.
	p, ok, err := cb.Get(context.Background(), "cooldown", nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, p)
}

func TestCircuitBreakerBackend_RecordsOpenGaugeOnTrip(t *testing.T) {
	fm := &fakeGaugeMetrics{}
	failing := policy.BackendFunc(func(_ context.Context, _ string, _ map[string]any) (policy.Policy, bool, error) {
		return nil, false, errors.New("remote unavailable")
	})
	cb := policy.NewCircuitBreakerBackend("remote", failing, policy.CircuitBreakerConfig{
		MaxFailures: 1,
		CoolOff:     time.Hour,
		Metrics:     metrics.NewRecorder(fm),
	}, nil)

	_, _, err := cb.Get(context.Background(), "cooldown", nil)
	require.Error(t, err)

	require.Equal(t, 1.0, fm.gauges["circuit_breaker_open"])
}

func TestCircuitBreakerBackend_PassesThroughSuccess(t *testing.T) {
	ok := policy.BackendFunc(func(_ context.Context, _ string, _ map[string]any) (policy.Policy, bool, error) {
		return policy.Policy{"default_ms": int64(5000)}, true, nil
	})
	cb := policy.NewCircuitBreakerBackend("remote", ok, policy.CircuitBreakerConfig{}, nil)

	p, found, err := cb.Get(context.Background(), "cooldown", nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(5000), p["default_ms"])
}
