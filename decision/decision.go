// Package decision defines the append-only decision record and the
// supporting audit types produced by one orchestrator pass over an event.
package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// SignalType enumerates the kinds of advisory output a reasoning call can
// produce.
type SignalType string

const (
	SignalActionSuggestion SignalType = "action_suggestion"
	SignalRiskFlag         SignalType = "risk_flag"
	SignalOptimizationHint SignalType = "optimization_hint"
	SignalError            SignalType = "error"
	SignalTimeout          SignalType = "timeout"
)

// AdvisorySignal is a single, non-binding output of a reasoning call.
type AdvisorySignal struct {
	SignalType   SignalType `json:"signal_type"`
	Payload      any        `json:"payload,omitempty"`
	Confidence   *float64   `json:"confidence,omitempty"`
	ReasoningMode string    `json:"reasoning_mode,omitempty"`
	DecisionID   string     `json:"decision_id,omitempty"`
	PlanID       string     `json:"plan_id,omitempty"`
	Error        string     `json:"error,omitempty"`
	TsMs         int64      `json:"ts_ms"`
}

// PolicyDecision is one audit row recording whether a policy was applied and why.
type PolicyDecision struct {
	PolicyName string `json:"policy_name"`
	Applied    bool   `json:"applied"`
	Reason     string `json:"reason"`
	TsMs       int64  `json:"ts_ms"`
}

// Decision is the persisted, append-only record of one admitted event's
// outcome.
type Decision struct {
	DecisionID       string           `json:"decision_id" bson:"decision_id"`
	CorrelationID    string           `json:"correlation_id" bson:"correlation_id"`
	Symbol           string           `json:"symbol" bson:"symbol"`
	Timeframe        string           `json:"timeframe" bson:"timeframe"`
	Signal           any              `json:"signal" bson:"signal"`
	ReasoningMode    string           `json:"reasoning_mode" bson:"reasoning_mode"`
	Confidence       float64          `json:"confidence" bson:"confidence"`
	ReasoningTimeMs  int64            `json:"reasoning_time_ms" bson:"reasoning_time_ms"`
	AdvisorySignals  []AdvisorySignal `json:"advisory_signals" bson:"advisory_signals"`
	PolicyDecisions  []PolicyDecision `json:"policy_decisions" bson:"policy_decisions"`
	DecisionHash     string           `json:"decision_hash" bson:"decision_hash"`
	TsMs             int64            `json:"ts_ms" bson:"ts_ms"`
}

// Outcome classifies a closed position relative to its entry.
type Outcome string

const (
	OutcomeWin       Outcome = "win"
	OutcomeLoss      Outcome = "loss"
	OutcomeBreakeven Outcome = "breakeven"
)

// ExitReason records why a position tracked by a DecisionOutcome was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "tp"
	ExitStopLoss   ExitReason = "sl"
	ExitManual     ExitReason = "manual"
	ExitTimeout    ExitReason = "timeout"
)

// DecisionOutcome links a later-observed trade outcome back to the Decision
// that suggested it. Append-only, like Decision.
type DecisionOutcome struct {
	DecisionID string     `json:"decision_id" bson:"decision_id"`
	Symbol     string     `json:"symbol" bson:"symbol"`
	Timeframe  string     `json:"timeframe" bson:"timeframe"`
	SignalType string     `json:"signal_type" bson:"signal_type"`
	EntryPrice float64    `json:"entry_price" bson:"entry_price"`
	ExitPrice  float64    `json:"exit_price" bson:"exit_price"`
	PnL        float64    `json:"pnl" bson:"pnl"`
	Outcome    Outcome    `json:"outcome" bson:"outcome"`
	ExitReason ExitReason `json:"exit_reason" bson:"exit_reason"`
	ClosedAt   int64      `json:"closed_at" bson:"closed_at"`
	CreatedAt  int64      `json:"created_at" bson:"created_at"`
}

// DeriveOutcome classifies pnl sign into an Outcome, per spec §3.
func DeriveOutcome(pnl float64) Outcome {
	switch {
	case pnl > 0:
		return OutcomeWin
	case pnl < 0:
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}

// Hash computes a stable digest over the Decision's content, excluding
// timestamps, so that re-computation is deterministic (spec §3 invariant,
// §8 property 3). The signal and payload fields are marshaled through a
// canonical, key-sorted JSON encoder so structurally equivalent values
// always hash identically.
func Hash(d Decision) string {
	h := sha256.New()
	enc := struct {
		CorrelationID   string           `json:"correlation_id"`
		Symbol          string           `json:"symbol"`
		Timeframe       string           `json:"timeframe"`
		Signal          json.RawMessage  `json:"signal"`
		ReasoningMode   string           `json:"reasoning_mode"`
		Confidence      float64          `json:"confidence"`
		AdvisorySignals []AdvisorySignal `json:"advisory_signals"`
		PolicyDecisions []PolicyDecision `json:"policy_decisions"`
	}{
		CorrelationID:   d.CorrelationID,
		Symbol:          d.Symbol,
		Timeframe:       d.Timeframe,
		Signal:          CanonicalJSON(d.Signal),
		ReasoningMode:   d.ReasoningMode,
		Confidence:      d.Confidence,
		AdvisorySignals: zeroTimestamps(d.AdvisorySignals),
		PolicyDecisions: zeroPolicyTimestamps(d.PolicyDecisions),
	}
	raw, _ := json.Marshal(enc)
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

func zeroTimestamps(in []AdvisorySignal) []AdvisorySignal {
	out := make([]AdvisorySignal, len(in))
	for i, s := range in {
		s.TsMs = 0
		out[i] = s
	}
	return out
}

func zeroPolicyTimestamps(in []PolicyDecision) []PolicyDecision {
	out := make([]PolicyDecision, len(in))
	for i, p := range in {
		p.TsMs = 0
		out[i] = p
	}
	return out
}

// CanonicalJSON serializes v into a byte-stable, key-sorted JSON encoding so
// structurally equivalent payloads always produce the same bytes. It is used
// both for decision hashing and for dedup fingerprinting (see package dedup).
func CanonicalJSON(v any) json.RawMessage {
	canon := canonicalize(v)
	raw, err := json.Marshal(canon)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}

// canonicalize recursively walks a decoded JSON-like value (maps, slices,
// scalars) and converts maps into sorted key/value pairs so json.Marshal
// produces deterministic output regardless of original map iteration order.
func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]keyValue, 0, len(keys))
		for _, k := range keys {
			out = append(out, keyValue{K: k, V: canonicalize(val[k])})
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonicalize(item)
		}
		return out
	default:
		// Round-trip non-map/slice/scalar values (structs, etc.) through JSON
		// so they normalize into the same shape as decoded payloads.
		raw, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return val
		}
		if _, ok := decoded.(map[string]any); ok {
			return canonicalize(decoded)
		}
		if _, ok := decoded.([]any); ok {
			return canonicalize(decoded)
		}
		return decoded
	}
}

type keyValue struct {
	K string
	V any
}

// MarshalJSON renders a keyValue as a two-element JSON array so a sorted
// slice of keyValue serializes deterministically without relying on Go map
// ordering.
func (kv keyValue) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{kv.K, kv.V})
}
