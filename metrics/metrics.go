// Package metrics implements the named counters/histograms/gauges of spec
// §4.12 (component C12) as a thin, spec-literal wrapper over
// telemetry.Metrics, plus the bounded policy-audit ring buffer.
package metrics

import (
	"time"

	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/telemetry"
)

// Recorder exposes the spec §4.12 metric names as typed methods so call
// sites never hand-type a metric name string.
type Recorder struct {
	m telemetry.Metrics
}

// NewRecorder wraps m. A nil m is replaced with a no-op implementation.
func NewRecorder(m telemetry.Metrics) *Recorder {
	if m == nil {
		m = telemetry.NoopMetrics{}
	}
	return &Recorder{m: m}
}

func (r *Recorder) DecisionsProcessed()    { r.m.IncCounter("decisions_processed_total", 1) }
func (r *Recorder) DeduplicatedDecisions() { r.m.IncCounter("deduplicated_decisions_total", 1) }
func (r *Recorder) DLQRetries()            { r.m.IncCounter("dlq_retries_total", 1) }
func (r *Recorder) DLQDropped()            { r.m.IncCounter("dlq_dropped_total", 1) }
func (r *Recorder) NotificationError()     { r.m.IncCounter("notification_errors_total", 1) }
func (r *Recorder) ReasoningTimeout()      { r.m.IncCounter("reasoning_timeouts_total", 1) }

func (r *Recorder) PolicyBackendFailure(backend string) {
	r.m.IncCounter("policy_backend_failures_total", 1, "backend", backend)
}

// PolicyCacheHit and PolicyCacheMiss instrument policy.Store's TTL cache.
// Not spec §4.12-named, but kept as typed Recorder methods rather than
// hand-typed strings at the call site, same as every other metric here.
func (r *Recorder) PolicyCacheHit(policy string) {
	r.m.IncCounter("policy_cache_hit_total", 1, "policy", policy)
}

func (r *Recorder) PolicyCacheMiss(policy string) {
	r.m.IncCounter("policy_cache_miss_total", 1, "policy", policy)
}

// DLQTerminal counts entries dropped after exhausting dlq.max_attempts
// retries (spec §4.9), distinct from dlq_dropped_total's capacity eviction.
func (r *Recorder) DLQTerminal() { r.m.IncCounter("dlq_terminal_total", 1) }

// NotificationDelivered counts successful channel deliveries, the
// complement of NotificationError.
func (r *Recorder) NotificationDelivered(channel string) {
	r.m.IncCounter("notifications_delivered_total", 1, "channel", channel)
}

// DecisionPersistFailure counts primary-store insert failures that hand a
// decision to the DLQ (spec §4.8). decisions_processed_total (spec §4.12) is
// owned by orchestrator.Handler, not here, so a persisted-then-escalated
// decision is never double-counted.
func (r *Recorder) DecisionPersistFailure() {
	r.m.IncCounter("decision_persist_failure_total", 1)
}

func (r *Recorder) DecisionProcessingTime(d time.Duration) {
	r.m.RecordTimer("decision_processing_time_ms", d)
}

func (r *Recorder) ReasoningTime(d time.Duration) {
	r.m.RecordTimer("reasoning_time_ms", d)
}

func (r *Recorder) NotificationDeliveryTime(d time.Duration) {
	r.m.RecordTimer("notification_delivery_ms", d)
}

func (r *Recorder) DLQSize(n int) {
	r.m.RecordGauge("dlq_size", float64(n))
}

func (r *Recorder) CircuitBreakerOpen(backend string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	r.m.RecordGauge("circuit_breaker_open", v, "backend", backend)
}

// DefaultAuditLogSize is the default policy audit ring buffer capacity
// (spec §4.12: "bounded ring buffer (default 10k entries)").
const DefaultAuditLogSize = 10_000

// AuditLog is a bounded, overwrite-oldest ring buffer of recent
// PolicyDecisions, kept for diagnostics only: spec §4.12 is explicit that
// it "is never the source of truth and never persisted by the core."
type AuditLog struct {
	entries []decision.PolicyDecision
	cap     int
	next    int
	size    int
}

// NewAuditLog constructs an AuditLog with the given capacity. Zero selects
// DefaultAuditLogSize.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditLogSize
	}
	return &AuditLog{entries: make([]decision.PolicyDecision, capacity), cap: capacity}
}

// Record appends pd, overwriting the oldest entry once the buffer is full.
func (l *AuditLog) Record(pd decision.PolicyDecision) {
	l.entries[l.next] = pd
	l.next = (l.next + 1) % l.cap
	if l.size < l.cap {
		l.size++
	}
}

// Recent returns up to n of the most recently recorded entries, newest
// first.
func (l *AuditLog) Recent(n int) []decision.PolicyDecision {
	if n <= 0 || l.size == 0 {
		return nil
	}
	if n > l.size {
		n = l.size
	}
	out := make([]decision.PolicyDecision, 0, n)
	idx := l.next - 1
	for i := 0; i < n; i++ {
		if idx < 0 {
			idx += l.cap
		}
		out = append(out, l.entries[idx])
		idx--
	}
	return out
}

// Len reports how many entries are currently stored (≤ capacity).
func (l *AuditLog) Len() int { return l.size }
