// Package filter implements the signal filter (spec §4.7, component C7):
// per-signal-type confidence thresholds and a blocklist applied to a
// reasoning call's output, grounded on the allow/block-set shape of
// features/policy/basic/engine.go.
package filter

import (
	"fmt"

	"github.com/signalforge/decisioncore/decision"
)

// Rules is the decoded "signal_filter" policy document (spec §4.7):
// per-signal-type minimum confidence and a blocklist of signal types.
type Rules struct {
	MinConfidence map[decision.SignalType]float64
	Blocklist     map[decision.SignalType]struct{}
}

// RulesFromPolicy decodes a policy.Policy-shaped map into Rules. Absent or
// malformed fields default to "no filtering" for that field.
func RulesFromPolicy(p map[string]any) Rules {
	r := Rules{
		MinConfidence: make(map[decision.SignalType]float64),
		Blocklist:     make(map[decision.SignalType]struct{}),
	}
	if raw, ok := p["min_confidence"].(map[string]any); ok {
		for k, v := range raw {
			if f, ok := toFloat(v); ok {
				r.MinConfidence[decision.SignalType(k)] = f
			}
		}
	}
	if raw, ok := p["blocklist"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				r.Blocklist[decision.SignalType(s)] = struct{}{}
			}
		}
	}
	// A bare top-level "min_confidence" float (rather than per-type map)
	// applies uniformly to every signal type, matching the literal scenario
	// in spec §8 S1 ("signal filter min_confidence 0.5").
	if f, ok := toFloat(p["min_confidence"]); ok {
		r.MinConfidence["*"] = f
	}
	return r
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (r Rules) threshold(t decision.SignalType) (float64, bool) {
	if v, ok := r.MinConfidence[t]; ok {
		return v, true
	}
	if v, ok := r.MinConfidence["*"]; ok {
		return v, true
	}
	return 0, false
}

// Apply filters signals against rules, returning the admitted signals and a
// PolicyDecision audit row per input signal (spec §4.7: "Every accept/drop
// is recorded as a PolicyDecision"). nowMs stamps every audit row. signals
// is never mutated.
func Apply(signals []decision.AdvisorySignal, rules Rules, nowMs int64) ([]decision.AdvisorySignal, []decision.PolicyDecision) {
	kept := make([]decision.AdvisorySignal, 0, len(signals))
	audit := make([]decision.PolicyDecision, 0, len(signals))

	for _, s := range signals {
		if _, blocked := rules.Blocklist[s.SignalType]; blocked {
			audit = append(audit, decision.PolicyDecision{
				PolicyName: "signal_filter",
				Applied:    true,
				Reason:     fmt.Sprintf("blocked: signal_type=%s is on the blocklist", s.SignalType),
				TsMs:       nowMs,
			})
			continue
		}

		threshold, hasThreshold := rules.threshold(s.SignalType)
		if hasThreshold && s.Confidence != nil && *s.Confidence < threshold {
			audit = append(audit, decision.PolicyDecision{
				PolicyName: "signal_filter",
				Applied:    true,
				Reason:     fmt.Sprintf("dropped: confidence %.4f below min_confidence %.4f for signal_type=%s", *s.Confidence, threshold, s.SignalType),
				TsMs:       nowMs,
			})
			continue
		}

		kept = append(kept, s)
		audit = append(audit, decision.PolicyDecision{
			PolicyName: "signal_filter",
			Applied:    false,
			Reason:     "accepted",
			TsMs:       nowMs,
		})
	}

	return kept, audit
}
