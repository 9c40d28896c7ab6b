// Package reasoning implements the bounded reasoning invoker (spec §4.6,
// component C6): a time-bounded, non-throwing call into a user-supplied
// reasoning function.
package reasoning

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/event"
	"github.com/signalforge/decisioncore/memory"
)

// DefaultTimeout and MaxTimeout bound reasoning.timeout_ms (spec §4.6,
// §6.7).
const (
	DefaultTimeout = 500 * time.Millisecond
	MaxTimeout     = 5 * time.Second
)

// Func is a user-supplied reasoning function (spec §6.2). Implementations
// must not mutate ev and must treat reader as read-only.
type Func func(ctx context.Context, ev event.Event, reader memory.Reader) ([]decision.AdvisorySignal, error)

// Invoker dispatches to one of several named reasoning modes.
type Invoker struct {
	modes       map[string]Func
	defaultMode string
}

// New constructs an Invoker. modes maps a reasoning_mode name to its
// implementation; defaultMode is used when an event carries no mode (spec
// §4.6, §6.7 "reasoning.default_mode").
func New(modes map[string]Func, defaultMode string) *Invoker {
	if modes == nil {
		modes = make(map[string]Func)
	}
	return &Invoker{modes: modes, defaultMode: defaultMode}
}

// Reason invokes the reasoning function registered for mode (or the default
// mode when mode is empty) with a wall-clock deadline of timeout. A
// non-positive timeout selects DefaultTimeout and a timeout above MaxTimeout
// is lowered to MaxTimeout. The call never returns an error to the caller: every
// failure mode (unknown mode, timeout, panic, user error, malformed output)
// is translated into a synthetic AdvisorySignal per spec §4.6.
func (inv *Invoker) Reason(ctx context.Context, ev event.Event, reader memory.Reader, mode string, timeout time.Duration) []decision.AdvisorySignal {
	if mode == "" {
		mode = inv.defaultMode
	}
	fn, ok := inv.modes[mode]
	if !ok {
		return []decision.AdvisorySignal{{
			SignalType: decision.SignalError,
			Error:      fmt.Sprintf("unknown_reasoning_mode:%s", mode),
			TsMs:       nowMs(),
		}}
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		signals []decision.AdvisorySignal
		err     error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				done <- result{err: fmt.Errorf("reasoning function panicked: %v\n%s", r, stack)}
			}
		}()
		signals, err := fn(ctx, ev, reader)
		done <- result{signals: signals, err: err}
	}()

	select {
	case <-ctx.Done():
		// fn's goroutine is still running here; it leaks until fn itself
		// returns and writes to done (buffered, so that write never blocks).
		// Acceptable under the wall-clock timeout model of spec §4.6: Go
		// has no mechanism to force-preempt fn.
		return []decision.AdvisorySignal{{
			SignalType: decision.SignalTimeout,
			Error:      "reasoning_timeout_exceeded",
			TsMs:       nowMs(),
		}}
	case res := <-done:
		if res.err != nil {
			return []decision.AdvisorySignal{{
				SignalType: decision.SignalError,
				Error:      res.err.Error(),
				TsMs:       nowMs(),
			}}
		}
		return hygiene(res.signals)
	}
}

// hygiene enforces spec §4.6's output-hygiene rules: confidence is clamped
// into [0, 1], a NaN confidence is dropped to nil, and a malformed signal is replaced with a
// single error signal while siblings are preserved.
func hygiene(in []decision.AdvisorySignal) []decision.AdvisorySignal {
	out := make([]decision.AdvisorySignal, 0, len(in))
	for _, s := range in {
		if s.SignalType == "" {
			out = append(out, decision.AdvisorySignal{
				SignalType: decision.SignalError,
				Error:      "signal_construction_failed",
				TsMs:       nowMs(),
			})
			continue
		}
		if s.Confidence != nil {
			if math.IsNaN(*s.Confidence) {
				s.Confidence = nil
			} else {
				c := clamp(*s.Confidence, 0, 1)
				s.Confidence = &c
			}
		}
		if s.TsMs == 0 {
			s.TsMs = nowMs()
		}
		out = append(out, s)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// nowMs is overridable in tests that need deterministic timestamps; the
// production implementation uses wall-clock time.
var nowMs = func() int64 { return time.Now().UnixMilli() }
