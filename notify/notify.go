// Package notify implements the notification fanout (spec §4.10, component
// C10): best-effort, non-blocking, concurrency-capped delivery of a
// decision summary to a set of configured channels.
package notify

import (
	"context"
	"time"

	"github.com/signalforge/decisioncore/decision"
)

// Severity classifies a notification for per-channel filtering (spec §4.10,
// §6.7 "notify_level").
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
)

// Level is a channel's configured filter: it accepts notifications at or
// above the configured severity, or everything when set to "all".
type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
	LevelAll  Level = "all"
)

// accepts reports whether a notification of sev passes a channel configured
// with filter lvl.
func (lvl Level) accepts(sev Severity) bool {
	switch lvl {
	case LevelAll:
		return true
	case LevelWarn:
		return sev == SeverityWarn
	case LevelInfo:
		return true
	default:
		return true
	}
}

// Payload is the JSON body sent to every notification channel (spec §6.6).
type Payload struct {
	CorrelationID   string                    `json:"correlation_id"`
	Symbol          string                    `json:"symbol"`
	Timeframe       string                    `json:"timeframe"`
	Signal          any                       `json:"signal"`
	Confidence      float64                   `json:"confidence"`
	AdvisorySignals []decision.AdvisorySignal `json:"advisory_signals"`
	TsMs            int64                     `json:"ts_ms"`
}

// Channel delivers a Payload to one external destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, p Payload) error
}

// ChannelConfig pairs a Channel with its dispatch filter (spec §4.10: "Per
// channel configuration: webhook URL, severity filter, min confidence" —
// the webhook URL lives inside the Channel implementation itself).
type ChannelConfig struct {
	Channel       Channel
	Filter        Level
	MinConfidence float64
}

// Defaults for fanout shape (spec §4.10, §6.7).
const (
	DefaultMaxConcurrency = 10
	DefaultRetries        = 3
	DefaultTimeout        = 30 * time.Second
	DefaultBackoffBase    = time.Second
	DefaultBackoffMult    = 2.0
	// DefaultPacingRPS and DefaultPacingBurst bound the steady-state and
	// burst rate of outbound requests to any single channel, independent
	// of the global MaxConcurrency cap (spec §6.7's notifier shape has no
	// stated default for this; generous enough that a healthy channel
	// never waits under normal decision volume).
	DefaultPacingRPS   = 20.0
	DefaultPacingBurst = 20
)
