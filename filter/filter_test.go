package filter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/filter"
)

func conf(v float64) *float64 { return &v }

func TestApply_S1Scenario(t *testing.T) {
	rules := filter.RulesFromPolicy(map[string]any{"min_confidence": 0.5})
	signals := []decision.AdvisorySignal{
		{SignalType: decision.SignalActionSuggestion, Confidence: conf(0.9)},
	}

	kept, audit := filter.Apply(signals, rules, 1_700_000_000_000)
	require.Len(t, kept, 1)
	require.Len(t, audit, 1)
	require.False(t, audit[0].Applied)
}

func TestApply_BelowThresholdDropped(t *testing.T) {
	rules := filter.RulesFromPolicy(map[string]any{"min_confidence": 0.5})
	signals := []decision.AdvisorySignal{
		{SignalType: decision.SignalActionSuggestion, Confidence: conf(0.2)},
	}

	kept, audit := filter.Apply(signals, rules, 0)
	require.Empty(t, kept)
	require.Len(t, audit, 1)
	require.True(t, audit[0].Applied)
}

func TestApply_AbsentConfidenceIsKept(t *testing.T) {
	rules := filter.RulesFromPolicy(map[string]any{"min_confidence": 0.9})
	signals := []decision.AdvisorySignal{
		{SignalType: decision.SignalActionSuggestion},
	}

	kept, _ := filter.Apply(signals, rules, 0)
	require.Len(t, kept, 1)
}

func TestApply_BlocklistedTypeDropped(t *testing.T) {
	rules := filter.RulesFromPolicy(map[string]any{
		"blocklist": []any{"risk_flag"},
	})
	signals := []decision.AdvisorySignal{
		{SignalType: decision.SignalRiskFlag, Confidence: conf(1.0)},
	}

	kept, audit := filter.Apply(signals, rules, 0)
	require.Empty(t, kept)
	require.True(t, audit[0].Applied)
	require.Contains(t, audit[0].Reason, "blocklist")
}

func TestApply_PerTypeThresholdOverridesWildcard(t *testing.T) {
	rules := filter.Rules{MinConfidence: map[decision.SignalType]float64{
		"*":                     0.1,
		decision.SignalRiskFlag: 0.8,
	}}
	signals := []decision.AdvisorySignal{
		{SignalType: decision.SignalRiskFlag, Confidence: conf(0.5)},
	}

	kept, _ := filter.Apply(signals, rules, 0)
	require.Empty(t, kept, "per-type threshold of 0.8 must drop a 0.5-confidence risk_flag")
}

func TestApply_NoRulesKeepsEverySignalInInputOrder(t *testing.T) {
	rules := filter.RulesFromPolicy(nil)
	signals := []decision.AdvisorySignal{
		{SignalType: decision.SignalActionSuggestion},
		{SignalType: decision.SignalRiskFlag},
	}

	kept, audit := filter.Apply(signals, rules, 0)
	require.Len(t, kept, 2)
	require.Len(t, audit, 2)
	require.Equal(t, decision.SignalActionSuggestion, kept[0].SignalType)
	require.Equal(t, decision.SignalRiskFlag, kept[1].SignalType)
}
