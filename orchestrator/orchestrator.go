// Package orchestrator implements the end-to-end event handler (spec
// §4.13, component C13): the single path `handle_event(event) → EventResult`
// that composes every other component (C1-C2-C3-C4-C6-C7-C8-C10-C11) into
// one admission-through-notification pass.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/signalforge/decisioncore/cooldown"
	"github.com/signalforge/decisioncore/dedup"
	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/event"
	"github.com/signalforge/decisioncore/filter"
	"github.com/signalforge/decisioncore/memory"
	"github.com/signalforge/decisioncore/metrics"
	"github.com/signalforge/decisioncore/notify"
	"github.com/signalforge/decisioncore/persistence"
	"github.com/signalforge/decisioncore/policy"
	"github.com/signalforge/decisioncore/reasoning"
	"github.com/signalforge/decisioncore/sessionwindow"
	"github.com/signalforge/decisioncore/statemachine"
	"github.com/signalforge/decisioncore/telemetry"
)

// EventResult is the single value handle_event returns (spec §3
// "EventResult").
type EventResult struct {
	CorrelationID    string                    `json:"correlation_id"`
	EventState       statemachine.State        `json:"event_state"`
	DecisionID       string                    `json:"decision_id,omitempty"`
	ProcessingTimeMs int64                     `json:"processing_time_ms"`
	PolicyDecisions  []decision.PolicyDecision `json:"policy_decisions"`
	StateTransitions []statemachine.Transition `json:"state_transitions"`
	Metadata         map[string]any            `json:"metadata"`
}

// Handler wires together every component in the order spec §4.13 describes.
// It owns the process-local caches (dedup, cooldown) for its lifetime; the
// policy store, persister, and notifier are shared collaborators supplied
// by the caller.
type Handler struct {
	dedupCache *dedup.Cache
	cooldowns  *cooldown.Manager
	policies   *policy.Store
	invoker    *reasoning.Invoker
	persister  *persistence.Persister
	notifier   *notify.Fanout
	memory     memory.Reader
	metrics    *metrics.Recorder
	auditLog   *metrics.AuditLog
	log        telemetry.Logger

	reasoningTimeout time.Duration
	reasoningMode    string
	notifyChannels   []notify.ChannelConfig
}

// Deps bundles the collaborators a Handler is built from.
type Deps struct {
	DedupCache *dedup.Cache
	Cooldowns  *cooldown.Manager
	Policies   *policy.Store
	Invoker    *reasoning.Invoker
	Persister  *persistence.Persister
	Notifier   *notify.Fanout
	Memory     memory.Reader
	Metrics    *metrics.Recorder
	AuditLog   *metrics.AuditLog
	Logger     telemetry.Logger

	// ReasoningTimeout and ReasoningMode are used when neither the event
	// nor the policy store supplies an override (spec §6.7
	// reasoning.timeout_ms / reasoning.default_mode).
	ReasoningTimeout time.Duration
	ReasoningMode    string
	// NotifyChannels is the fixed channel set dispatched to on every
	// processed or escalated decision (spec §4.10).
	NotifyChannels []notify.ChannelConfig
}

// New constructs a Handler from deps, filling in no-op defaults for any
// collaborator left nil so a partially configured Handler is still safe to
// call (useful in tests that only exercise a subset of the pipeline).
func New(deps Deps) *Handler {
	h := &Handler{
		dedupCache:       deps.DedupCache,
		cooldowns:        deps.Cooldowns,
		policies:         deps.Policies,
		invoker:          deps.Invoker,
		persister:        deps.Persister,
		notifier:         deps.Notifier,
		memory:           deps.Memory,
		metrics:          deps.Metrics,
		auditLog:         deps.AuditLog,
		log:              deps.Logger,
		reasoningTimeout: deps.ReasoningTimeout,
		reasoningMode:    deps.ReasoningMode,
		notifyChannels:   deps.NotifyChannels,
	}
	if h.dedupCache == nil {
		h.dedupCache = dedup.New(dedup.Options{})
	}
	if h.cooldowns == nil {
		h.cooldowns = cooldown.New()
	}
	if h.invoker == nil {
		h.invoker = reasoning.New(nil, "")
	}
	if h.metrics == nil {
		h.metrics = metrics.NewRecorder(nil)
	}
	if h.auditLog == nil {
		h.auditLog = metrics.NewAuditLog(0)
	}
	if h.log == nil {
		h.log = telemetry.NoopLogger{}
	}
	return h
}

// Handle runs the full spec §4.13 pipeline over raw and returns an
// EventResult. It never returns an error: every failure mode terminates in
// a terminal EventState with an explanatory reason, per spec §7.
func (h *Handler) Handle(ctx context.Context, raw event.Raw) (result EventResult) {
	start := time.Now()
	correlationID := raw.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error(ctx, "orchestrator handler panicked, discarding event",
				"correlation_id", correlationID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			result = h.discard(correlationID, statemachine.New(), start,
				fmt.Sprintf("internal_error:%T", r), nil)
		}
	}()

	sm := statemachine.New()

	// Step 1: validate.
	ev, err := event.Validate(raw)
	if err != nil {
		return h.discard(correlationID, sm, start, err.Error(), nil)
	}
	correlationID = ev.CorrelationID

	// Step 2: dedup.
	fingerprint := dedup.Fingerprint(ev)
	if h.dedupCache.Seen(fingerprint) {
		h.metrics.DeduplicatedDecisions()
		return h.discard(correlationID, sm, start, "duplicate", nil)
	}

	// Step 3: admit (cooldown, then session window).
	admitTime := time.UnixMilli(ev.TsMs)
	cooldownMs := h.cooldownMs(ctx, ev)
	cd := h.cooldowns.Admit(ev.EventType, admitTime, cooldownMs)
	if !cd.Admitted {
		meta := map[string]any{"retry_after_ms": cd.RetryAfterMs}
		return h.defer_(correlationID, sm, start, "cooldown", meta)
	}

	ranges := h.sessionWindowRanges(ctx, ev)
	if !sessionwindow.Admit(admitTime, ranges) {
		return h.defer_(correlationID, sm, start, "session_window", nil)
	}

	// Step 4: reason.
	mode, timeout := h.reasoningParams(ctx, ev)
	reasonStart := time.Now()
	signals := h.invoker.Reason(ctx, ev, h.memory, mode, timeout)
	reasoningTimeMs := time.Since(reasonStart).Milliseconds()
	h.metrics.ReasoningTime(time.Since(reasonStart))
	for _, s := range signals {
		if s.SignalType == decision.SignalTimeout {
			h.metrics.ReasoningTimeout()
		}
	}

	// Step 5: filter.
	rules := h.signalFilterRules(ctx, ev)
	nowMs := time.Now().UnixMilli()
	kept, audit := filter.Apply(signals, rules, nowMs)
	for _, pd := range audit {
		h.auditLog.Record(pd)
	}

	// Step 6: persist.
	d := decision.Decision{
		DecisionID:      uuid.NewString(),
		CorrelationID:   ev.CorrelationID,
		Symbol:          ev.Symbol,
		Timeframe:       ev.Timeframe,
		Signal:          ev.Signal,
		ReasoningMode:   mode,
		Confidence:      topConfidence(kept),
		ReasoningTimeMs: reasoningTimeMs,
		AdvisorySignals: kept,
		PolicyDecisions: audit,
		TsMs:            nowMs,
	}
	persisted, escalated := h.persister.Persist(ctx, d)

	var state statemachine.State
	var reason string
	if escalated {
		state = statemachine.StateEscalated
		reason = "persistence escalated to dlq"
	} else {
		state = statemachine.StateProcessed
		reason = "reasoning completed, persisted"
	}
	if err := sm.Transition(state, nowMs, reason); err != nil {
		h.log.Warn(ctx, "state transition rejected", "correlation_id", correlationID, "error", err.Error())
	}

	// Step 7: notify (fire-and-forget; never awaited for the result).
	if h.notifier != nil && len(h.notifyChannels) > 0 {
		payload := notify.Payload{
			CorrelationID:   persisted.CorrelationID,
			Symbol:          persisted.Symbol,
			Timeframe:       persisted.Timeframe,
			Signal:          persisted.Signal,
			Confidence:      persisted.Confidence,
			AdvisorySignals: persisted.AdvisorySignals,
			TsMs:            persisted.TsMs,
		}
		go h.notifier.Dispatch(context.WithoutCancel(ctx), payload, h.notifyChannels)
	}

	// Step 8: return EventResult.
	processingTime := time.Since(start)
	h.metrics.DecisionsProcessed()
	h.metrics.DecisionProcessingTime(processingTime)
	return EventResult{
		CorrelationID:    persisted.CorrelationID,
		EventState:       state,
		DecisionID:       persisted.DecisionID,
		ProcessingTimeMs: processingTime.Milliseconds(),
		PolicyDecisions:  audit,
		StateTransitions: sm.History(),
		Metadata:         advisoryMetadata(persisted.AdvisorySignals),
	}
}

func (h *Handler) discard(correlationID string, sm *statemachine.Machine, start time.Time, reason string, extra map[string]any) EventResult {
	nowMs := time.Now().UnixMilli()
	if err := sm.Transition(statemachine.StateDiscarded, nowMs, reason); err != nil {
		h.log.Warn(context.Background(), "state transition rejected", "correlation_id", correlationID, "error", err.Error())
	}
	meta := map[string]any{"reason": reason}
	for k, v := range extra {
		meta[k] = v
	}
	return EventResult{
		CorrelationID:    correlationID,
		EventState:       statemachine.StateDiscarded,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		StateTransitions: sm.History(),
		Metadata:         meta,
	}
}

func (h *Handler) defer_(correlationID string, sm *statemachine.Machine, start time.Time, reason string, extra map[string]any) EventResult {
	nowMs := time.Now().UnixMilli()
	if err := sm.Transition(statemachine.StateDeferred, nowMs, reason); err != nil {
		h.log.Warn(context.Background(), "state transition rejected", "correlation_id", correlationID, "error", err.Error())
	}
	meta := map[string]any{"reason": reason}
	for k, v := range extra {
		meta[k] = v
	}
	return EventResult{
		CorrelationID:    correlationID,
		EventState:       statemachine.StateDeferred,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		StateTransitions: sm.History(),
		Metadata:         meta,
	}
}

// cooldownMs resolves the cooldown duration for ev.EventType from the
// policy store (spec §4.3: "Parameter: cooldown_ms[event_type] (from
// policy store; default 0 = no cooldown)").
func (h *Handler) cooldownMs(ctx context.Context, ev event.Event) int64 {
	if h.policies == nil {
		return 0
	}
	p, _ := h.policies.Get(ctx, "cooldown", map[string]any{"event_type": ev.EventType})
	if v, ok := toInt64(p["cooldown_ms"]); ok {
		return v
	}
	if v, ok := toInt64(p["default_ms"]); ok {
		return v
	}
	return 0
}

// sessionWindowRanges resolves the allowed hour ranges for ev.EventType
// from the "session_window" policy (spec §4.4).
func (h *Handler) sessionWindowRanges(ctx context.Context, ev event.Event) []sessionwindow.HourRange {
	if h.policies == nil {
		return nil
	}
	p, _ := h.policies.Get(ctx, "session_window", map[string]any{"event_type": ev.EventType})
	raw, ok := p["ranges"].([]any)
	if !ok {
		return nil
	}
	ranges := make([]sessionwindow.HourRange, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start, sOk := toInt64(m["start"])
		end, eOk := toInt64(m["end"])
		if !sOk || !eOk {
			continue
		}
		ranges = append(ranges, sessionwindow.HourRange{Start: int(start), End: int(end)})
	}
	return ranges
}

// reasoningParams resolves the reasoning mode and timeout for ev: the
// event's own hint takes precedence, then the "reasoning" policy, then the
// Handler's configured defaults (spec §4.6, §6.7).
func (h *Handler) reasoningParams(ctx context.Context, ev event.Event) (mode string, timeout time.Duration) {
	mode = h.reasoningMode
	timeout = h.reasoningTimeout
	if h.policies != nil {
		p, _ := h.policies.Get(ctx, "reasoning", map[string]any{"event_type": ev.EventType})
		if m, ok := p["mode"].(string); ok && m != "" {
			mode = m
		}
		if v, ok := toInt64(p["timeout_ms"]); ok && v > 0 {
			timeout = time.Duration(v) * time.Millisecond
		}
	}
	if hint, ok := ev.Metadata["reasoning_mode"].(string); ok && hint != "" {
		mode = hint
	}
	return mode, timeout
}

// signalFilterRules resolves the "signal_filter" policy for ev.EventType
// into filter.Rules (spec §4.7).
func (h *Handler) signalFilterRules(ctx context.Context, ev event.Event) filter.Rules {
	if h.policies == nil {
		return filter.RulesFromPolicy(nil)
	}
	p, _ := h.policies.Get(ctx, "signal_filter", map[string]any{"event_type": ev.EventType})
	return filter.RulesFromPolicy(p)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// topConfidence returns the highest confidence among signals, or 0 if none
// carry one, used as the Decision's summary confidence field.
func topConfidence(signals []decision.AdvisorySignal) float64 {
	var best float64
	for _, s := range signals {
		if s.Confidence != nil && *s.Confidence > best {
			best = *s.Confidence
		}
	}
	return best
}

// advisoryMetadata builds the EventResult.Metadata advisory_signals and
// advisory_errors lists (spec §3 "EventResult").
func advisoryMetadata(signals []decision.AdvisorySignal) map[string]any {
	errs := make([]decision.AdvisorySignal, 0)
	for _, s := range signals {
		if s.SignalType == decision.SignalError || s.SignalType == decision.SignalTimeout {
			errs = append(errs, s)
		}
	}
	return map[string]any{
		"advisory_signals": signals,
		"advisory_errors":  errs,
	}
}
