// Package dlq implements the dead-letter queue (spec §4.9, component C9):
// a bounded in-process FIFO of decisions whose primary persistence failed,
// retried in the background with exponential backoff.
package dlq

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/metrics"
	"github.com/signalforge/decisioncore/telemetry"
)

// Defaults for DLQ shape and retry (spec §4.9, §6.7).
const (
	DefaultMaxSize     = 10_000
	DefaultMaxAttempts = 10
	DefaultBaseBackoff = time.Second
	DefaultMultiplier  = 2.0
	DefaultMaxBackoff  = 60 * time.Second
)

// InsertFunc re-attempts the primary insert that originally failed.
type InsertFunc func(ctx context.Context, d decision.Decision) error

// Options configures a Queue.
type Options struct {
	// MaxSize bounds the queue length (spec §8 invariant 5: dlq_size ≤
	// dlq.max_size at all times). Zero selects DefaultMaxSize.
	MaxSize int
	// MaxAttempts bounds retries per entry before it is dropped to the
	// terminal-DLQ counter. Zero selects DefaultMaxAttempts.
	MaxAttempts int
	// BaseBackoff, Multiplier, MaxBackoff parameterize the per-entry
	// exponential backoff: base · multiplier^n capped at MaxBackoff.
	BaseBackoff time.Duration
	Multiplier  float64
	MaxBackoff  time.Duration

	Metrics *metrics.Recorder
	Logger  telemetry.Logger
}

// Queue is a bounded, drop-oldest-on-overflow FIFO of decisions pending
// retry.
type Queue struct {
	mu          sync.Mutex
	entries     *list.List
	maxSize     int
	maxAttempts int
	baseBackoff time.Duration
	multiplier  float64
	maxBackoff  time.Duration

	droppedTotal  int64
	terminalTotal int64

	metrics *metrics.Recorder
	log     telemetry.Logger
}

type queueEntry struct {
	d            decision.Decision
	attempts     int
	nextAttempAt time.Time
}

// New constructs a Queue.
func New(opts Options) *Queue {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	base := opts.BaseBackoff
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	mult := opts.Multiplier
	if mult <= 0 {
		mult = DefaultMultiplier
	}
	cap := opts.MaxBackoff
	if cap <= 0 {
		cap = DefaultMaxBackoff
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Queue{
		entries:     list.New(),
		maxSize:     maxSize,
		maxAttempts: maxAttempts,
		baseBackoff: base,
		multiplier:  mult,
		maxBackoff:  cap,
		metrics:     rec,
		log:         log,
	}
}

// Enqueue appends d for retry. If the queue is at capacity, the oldest
// entry is dropped to make room (spec §4.9 default backpressure policy) and
// a drop counter is incremented.
func (q *Queue) Enqueue(d decision.Decision) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.entries.Len() >= q.maxSize {
		front := q.entries.Front()
		if front != nil {
			q.entries.Remove(front)
			q.droppedTotal++
			q.metrics.DLQDropped()
		}
	}
	q.entries.PushBack(&queueEntry{d: d, nextAttempAt: time.Now()})
	q.metrics.DLQSize(q.entries.Len())
}

// Size reports the current queue length.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

// RetryOnce scans the queue once, attempting insert on every entry whose
// backoff has elapsed. A successful insert removes the entry. A failed
// insert increments its attempt count and reschedules it, unless it has
// exhausted MaxAttempts, in which case it is emitted to the terminal-DLQ
// counter and dropped. Intended to be called periodically by a background
// goroutine (spec §4.9: "Background retry task").
func (q *Queue) RetryOnce(ctx context.Context, insert InsertFunc) {
	q.mu.Lock()
	now := time.Now()
	var due []*list.Element
	for el := q.entries.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*queueEntry)
		if !entry.nextAttempAt.After(now) {
			due = append(due, el)
		}
	}
	q.mu.Unlock()

	for _, el := range due {
		entry := el.Value.(*queueEntry)
		err := insert(ctx, entry.d)

		q.mu.Lock()
		q.metrics.DLQRetries()
		if err == nil {
			q.entries.Remove(el)
			q.metrics.DLQSize(q.entries.Len())
			q.mu.Unlock()
			continue
		}

		entry.attempts++
		if entry.attempts >= q.maxAttempts {
			q.entries.Remove(el)
			q.terminalTotal++
			q.metrics.DLQTerminal()
			q.metrics.DLQSize(q.entries.Len())
			q.log.Error(ctx, "dlq entry exhausted retries, dropping",
				"correlation_id", entry.d.CorrelationID, "attempts", entry.attempts, "error", err.Error())
			q.mu.Unlock()
			continue
		}
		entry.nextAttempAt = now.Add(q.backoffFor(entry.attempts))
		q.mu.Unlock()
	}
}

func (q *Queue) backoffFor(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.baseBackoff
	b.Multiplier = q.multiplier
	b.MaxInterval = q.maxBackoff
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // never give up on its own; Queue enforces MaxAttempts
	b.Reset()

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	if d > q.maxBackoff {
		d = q.maxBackoff
	}
	return d
}

// TerminalCount reports how many entries have exhausted retries and been
// dropped (spec §4.9).
func (q *Queue) TerminalCount() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.terminalTotal
}

// DroppedCount reports how many entries were evicted by the drop-oldest
// backpressure policy.
func (q *Queue) DroppedCount() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.droppedTotal
}

// Run starts a background retry loop that calls RetryOnce every interval
// until ctx is canceled.
func (q *Queue) Run(ctx context.Context, insert InsertFunc, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.RetryOnce(ctx, insert)
		}
	}
}
