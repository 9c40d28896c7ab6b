package notify

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/signalforge/decisioncore/metrics"
	"github.com/signalforge/decisioncore/telemetry"
)

// Fanout dispatches a Payload to a set of channels, bounded by a global
// concurrency cap, with per-channel retry, backoff, and rate pacing.
// Grounded on the semaphore.Weighted + backoff.BackOff combination in
// other_examples/53d3f3fa_smartramana-developer-mesh__pkg-intelligence-service.go.go;
// the per-channel rate.Limiter is an addition on top of that shape so a
// single noisy channel can't be hammered past its own steady-state rate
// even while the global concurrency cap has headroom.
type Fanout struct {
	sem         *semaphore.Weighted
	retries     int
	timeout     time.Duration
	backoffBase time.Duration
	backoffMult float64
	minWarnConf float64
	notifyLevel Level
	pacingRPS   float64
	pacingBurst int

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	metrics *metrics.Recorder
	log     telemetry.Logger
}

// Options configures a Fanout.
type Options struct {
	// MaxConcurrency bounds parallel outbound requests. Zero selects
	// DefaultMaxConcurrency.
	MaxConcurrency int64
	// Retries is the per-channel retry count. Zero selects DefaultRetries.
	Retries int
	// Timeout bounds a single delivery attempt. Zero selects
	// DefaultTimeout.
	Timeout time.Duration
	// BackoffBase and BackoffMult parameterize the per-attempt exponential
	// backoff. Zero selects the package defaults.
	BackoffBase time.Duration
	BackoffMult float64
	// MinWarnConfidence is the spec §6.7 "min_warn_confidence" threshold:
	// a decision at or above this confidence is treated as warn-severity
	// for channel filtering purposes.
	MinWarnConfidence float64
	// NotifyLevel is the coarse global filter (spec §6.7 "notify_level").
	// Empty selects LevelAll.
	NotifyLevel Level
	// PacingRPS and PacingBurst bound the per-channel request rate,
	// independent of MaxConcurrency. Zero selects the package defaults.
	PacingRPS   float64
	PacingBurst int

	Metrics *metrics.Recorder
	Logger  telemetry.Logger
}

// NewFanout constructs a Fanout.
func NewFanout(opts Options) *Fanout {
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	mult := opts.BackoffMult
	if mult <= 0 {
		mult = DefaultBackoffMult
	}
	level := opts.NotifyLevel
	if level == "" {
		level = LevelAll
	}
	pacingRPS := opts.PacingRPS
	if pacingRPS <= 0 {
		pacingRPS = DefaultPacingRPS
	}
	pacingBurst := opts.PacingBurst
	if pacingBurst <= 0 {
		pacingBurst = DefaultPacingBurst
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NewRecorder(nil)
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NoopLogger{}
	}

	return &Fanout{
		sem:         semaphore.NewWeighted(maxConcurrency),
		retries:     retries,
		timeout:     timeout,
		backoffBase: base,
		backoffMult: mult,
		minWarnConf: opts.MinWarnConfidence,
		notifyLevel: level,
		pacingRPS:   pacingRPS,
		pacingBurst: pacingBurst,
		limiters:    make(map[string]*rate.Limiter),
		metrics:     rec,
		log:         log,
	}
}

// limiterFor returns the per-channel rate.Limiter for name, creating it on
// first use (spec §6.7/§4.10 notifier pacing).
func (f *Fanout) limiterFor(name string) *rate.Limiter {
	f.limiterMu.Lock()
	defer f.limiterMu.Unlock()
	l, ok := f.limiters[name]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.pacingRPS), f.pacingBurst)
		f.limiters[name] = l
	}
	return l
}

// severityOf classifies p using MinWarnConfidence (spec §6.7).
func (f *Fanout) severityOf(p Payload) Severity {
	if p.Confidence >= f.minWarnConf {
		return SeverityWarn
	}
	return SeverityInfo
}

// Dispatch delivers p to every configured channel concurrently, subject to
// the global concurrency cap. Dispatch never returns an error: delivery is
// best-effort and non-blocking (spec §4.10). It returns once every channel
// attempt (including retries) has either succeeded or been exhausted, so
// callers that want fire-and-forget semantics should invoke Dispatch in a
// goroutine.
func (f *Fanout) Dispatch(ctx context.Context, p Payload, channels []ChannelConfig) {
	sev := f.severityOf(p)
	if !f.notifyLevel.accepts(sev) {
		return
	}

	var wg sync.WaitGroup
	for _, cfg := range channels {
		cfg := cfg
		if !cfg.Filter.accepts(sev) {
			continue
		}
		if p.Confidence < cfg.MinConfidence {
			continue
		}

		if err := f.sem.Acquire(ctx, 1); err != nil {
			f.log.Warn(ctx, "notification dispatch aborted: context canceled", "channel", cfg.Channel.Name())
			continue
		}
		wg.Add(1)
		go func() {
			defer f.sem.Release(1)
			defer wg.Done()
			f.deliverWithRetry(ctx, cfg.Channel, p)
		}()
	}
	wg.Wait()
}

func (f *Fanout) deliverWithRetry(ctx context.Context, ch Channel, p Payload) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.backoffBase
	b.Multiplier = f.backoffMult
	b.MaxElapsedTime = 0
	b.Reset()

	limiter := f.limiterFor(ch.Name())
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		err := ch.Send(attemptCtx, p)
		cancel()
		if err == nil {
			f.metrics.NotificationDeliveryTime(time.Since(start))
			f.metrics.NotificationDelivered(ch.Name())
			return
		}
		lastErr = err
		if attempt < f.retries {
			select {
			case <-time.After(b.NextBackOff()):
			case <-ctx.Done():
				break
			}
		}
	}

	f.metrics.NotificationDeliveryTime(time.Since(start))
	f.metrics.NotificationError()
	f.log.Warn(ctx, "notification delivery failed after retries",
		"channel", ch.Name(), "correlation_id", p.CorrelationID, "error", lastErr.Error())
}
