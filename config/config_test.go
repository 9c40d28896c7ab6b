package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/config"
)

func TestDefault_MatchesSpecStatedDefaults(t *testing.T) {
	c := config.Default()

	require.EqualValues(t, 500, c.Reasoning.TimeoutMs)
	require.EqualValues(t, 60_000, c.Dedup.TTLMs)
	require.EqualValues(t, 100_000, c.Dedup.MaxEntries)
	require.EqualValues(t, 0, c.Cooldown.DefaultMs)
	require.EqualValues(t, 30_000, c.Policy.CacheTTLMs)
	require.EqualValues(t, 5, c.Policy.Circuit.FailureThreshold)
	require.EqualValues(t, 60_000, c.Policy.Circuit.CoolOffMs)
	require.EqualValues(t, 10_000, c.DLQ.MaxSize)
	require.EqualValues(t, 10, c.DLQ.MaxAttempts)
	require.EqualValues(t, 2.0, c.DLQ.BackoffMultiplier)
	require.EqualValues(t, 10, c.Notifier.MaxConcurrency)
	require.EqualValues(t, 3, c.Notifier.Retries)
	require.Equal(t, "all", c.NotifyLevel)
}

func TestReasoningConfig_TimeoutConvertsMillisecondsToDuration(t *testing.T) {
	c := config.ReasoningConfig{TimeoutMs: 1500}
	require.Equal(t, 1500*time.Millisecond, c.Timeout())
}
