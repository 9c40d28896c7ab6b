package cooldown_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/cooldown"
)

func TestAdmit_S3Scenario(t *testing.T) {
	m := cooldown.New()
	t0 := time.UnixMilli(1_700_000_000_000)

	resA := m.Admit("ict_signal", t0, 60_000)
	require.True(t, resA.Admitted)

	resB := m.Admit("ict_signal", t0.Add(10*time.Second), 60_000)
	require.False(t, resB.Admitted)
	require.Equal(t, int64(50_000), resB.RetryAfterMs)
}

func TestAdmit_ZeroCooldownAlwaysAdmits(t *testing.T) {
	m := cooldown.New()
	t0 := time.UnixMilli(1_700_000_000_000)

	require.True(t, m.Admit("ict_signal", t0, 0).Admitted)
	require.True(t, m.Admit("ict_signal", t0.Add(time.Millisecond), 0).Admitted)
}

func TestAdmit_ExactBoundaryAdmits(t *testing.T) {
	m := cooldown.New()
	t0 := time.UnixMilli(1_700_000_000_000)

	require.True(t, m.Admit("ict_signal", t0, 1000).Admitted)
	require.True(t, m.Admit("ict_signal", t0.Add(time.Second), 1000).Admitted, "t - prev == cooldown is not < cooldown, so it admits")
}

func TestAdmit_IndependentPerEventType(t *testing.T) {
	m := cooldown.New()
	t0 := time.UnixMilli(1_700_000_000_000)

	require.True(t, m.Admit("ict_signal", t0, 60_000).Admitted)
	require.True(t, m.Admit("liquidity_sweep", t0, 60_000).Admitted)
}
