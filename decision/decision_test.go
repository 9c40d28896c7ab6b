package decision_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/decision"
)

func TestDeriveOutcome(t *testing.T) {
	cases := []struct {
		name string
		pnl  float64
		want decision.Outcome
	}{
		{"positive pnl wins", 12.5, decision.OutcomeWin},
		{"negative pnl loses", -3.0, decision.OutcomeLoss},
		{"zero pnl breaks even", 0, decision.OutcomeBreakeven},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, decision.DeriveOutcome(tc.pnl))
		})
	}
}

func baseDecision() decision.Decision {
	return decision.Decision{
		CorrelationID: "c1",
		Symbol:        "EURUSD",
		Timeframe:     "15m",
		Signal:        map[string]any{"type": "CHoCH", "strength": 0.8},
		ReasoningMode: "default",
		Confidence:    0.9,
		AdvisorySignals: []decision.AdvisorySignal{
			{SignalType: decision.SignalActionSuggestion, TsMs: 123},
		},
		TsMs: 1_700_000_000_000,
	}
}

func TestHash_IsStableAcrossTimestampChanges(t *testing.T) {
	a := baseDecision()
	b := baseDecision()
	b.TsMs = 999
	b.AdvisorySignals[0].TsMs = 1

	require.Equal(t, decision.Hash(a), decision.Hash(b), "Hash must ignore timestamp fields (spec §3, §8 property 3)")
}

func TestHash_DiffersOnContentChange(t *testing.T) {
	a := baseDecision()
	b := baseDecision()
	b.Confidence = 0.1

	require.NotEqual(t, decision.Hash(a), decision.Hash(b))
}

func TestHash_IsInsensitiveToMapKeyOrdering(t *testing.T) {
	a := baseDecision()
	a.Signal = map[string]any{"type": "CHoCH", "strength": 0.8}
	b := baseDecision()
	b.Signal = map[string]any{"strength": 0.8, "type": "CHoCH"}

	require.Equal(t, decision.Hash(a), decision.Hash(b))
}

func TestCanonicalJSON_SortsNestedMapKeys(t *testing.T) {
	a := decision.CanonicalJSON(map[string]any{"b": 1, "a": 2, "nested": map[string]any{"z": 1, "y": 2}})
	b := decision.CanonicalJSON(map[string]any{"nested": map[string]any{"y": 2, "z": 1}, "a": 2, "b": 1})

	require.Equal(t, string(a), string(b))
}

func TestCanonicalJSON_NilIsNull(t *testing.T) {
	require.Equal(t, "null", string(decision.CanonicalJSON(nil)))
}
