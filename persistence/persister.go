package persistence

import (
	"context"
	"encoding/json"

	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/dlq"
	"github.com/signalforge/decisioncore/metrics"
	"github.com/signalforge/decisioncore/telemetry"
)

// DefaultCacheTTLMs is the short TTL used for the optional write-through
// summary cache (spec §4.8 step 3).
const DefaultCacheTTLMs = 60_000

// Persister implements the decision-persister steps of spec §4.8: compute
// the decision hash, attempt the primary insert, write-through to cache on
// success, and enqueue to the DLQ on failure.
type Persister struct {
	store   Store
	cache   Cache // may be nil: cache is optional (spec §6.5)
	queue   *dlq.Queue
	metrics *metrics.Recorder
	log     telemetry.Logger
}

// PersisterOptions configures a Persister.
type PersisterOptions struct {
	Store   Store
	Cache   Cache
	Queue   *dlq.Queue
	Metrics *metrics.Recorder
	Logger  telemetry.Logger
}

// NewPersister constructs a Persister.
func NewPersister(opts PersisterOptions) *Persister {
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Persister{store: opts.Store, cache: opts.Cache, queue: opts.Queue, metrics: rec, log: log}
}

// Persist implements spec §4.8's write path. It always returns d with
// DecisionHash populated. escalated is true when the primary insert failed
// and d was handed to the DLQ instead (spec: "return the decision anyway
// with event_state=escalated").
func (p *Persister) Persist(ctx context.Context, d decision.Decision) (persisted decision.Decision, escalated bool) {
	d.DecisionHash = decision.Hash(d)

	if err := p.store.InsertDecision(ctx, d); err != nil {
		p.log.Warn(ctx, "primary decision insert failed, enqueueing to dlq",
			"correlation_id", d.CorrelationID, "error", err.Error())
		p.metrics.DecisionPersistFailure()
		if p.queue != nil {
			p.queue.Enqueue(d)
		}
		return d, true
	}

	if p.cache != nil {
		summary, err := json.Marshal(d)
		if err != nil {
			p.log.Warn(ctx, "decision summary marshal failed, cache write skipped",
				"correlation_id", d.CorrelationID, "error", err.Error())
		} else if err := p.cache.SetSummary(ctx, d.DecisionID, summary, DefaultCacheTTLMs); err != nil {
			// Swallowed per spec §4.8 step 3: cache failure never affects
			// correctness or the caller-visible EventResult.
			p.log.Warn(ctx, "decision summary cache write failed",
				"correlation_id", d.CorrelationID, "error", err.Error())
		}
	}

	return d, false
}
