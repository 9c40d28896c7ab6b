// Package event defines the inbound unit of work accepted by the
// orchestrator (spec §3 "Event") and the validator that shape-checks raw
// payloads before they enter the pipeline (spec §4.1, component C1).
package event

import (
	"fmt"

	"github.com/google/uuid"
)

// Event is the inbound, read-only unit of work. Once validated, an Event is
// never mutated: all derived state (dedup fingerprints, cooldown timers,
// state-machine transitions) lives in other entities.
type Event struct {
	CorrelationID string         `json:"correlation_id"`
	EventType     string         `json:"event_type"`
	Symbol        string         `json:"symbol"`
	Timeframe     string         `json:"timeframe"`
	Signal        any            `json:"signal"`
	TsMs          int64          `json:"ts_ms"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Raw is the untyped shape validation accepts, mirroring what a transport
// layer (out of scope, per spec §1) would decode off the wire before handing
// it to Validate.
type Raw struct {
	CorrelationID string         `json:"correlation_id"`
	EventType     string         `json:"event_type"`
	Symbol        string         `json:"symbol"`
	Timeframe     string         `json:"timeframe"`
	Signal        any            `json:"signal"`
	TsMs          *int64         `json:"ts_ms"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ValidationError reports why a raw event failed shape validation. It
// carries a single-line Reason, per spec §4.1, so the orchestrator can embed
// it directly in EventResult without further formatting.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validate shape-checks raw and assigns a correlation ID when absent. The
// required fields are event_type, symbol, signal, and ts_ms (spec §4.1).
// ts_ms must be present and non-negative.
func Validate(raw Raw) (Event, error) {
	if raw.EventType == "" {
		return Event{}, &ValidationError{Reason: "missing required field: event_type"}
	}
	if raw.Symbol == "" {
		return Event{}, &ValidationError{Reason: "missing required field: symbol"}
	}
	if raw.Signal == nil {
		return Event{}, &ValidationError{Reason: "missing required field: signal"}
	}
	if raw.TsMs == nil {
		return Event{}, &ValidationError{Reason: "missing required field: ts_ms"}
	}
	if *raw.TsMs < 0 {
		return Event{}, &ValidationError{Reason: fmt.Sprintf("invalid ts_ms: %d must be non-negative", *raw.TsMs)}
	}

	correlationID := raw.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	return Event{
		CorrelationID: correlationID,
		EventType:     raw.EventType,
		Symbol:        raw.Symbol,
		Timeframe:     raw.Timeframe,
		Signal:        raw.Signal,
		TsMs:          *raw.TsMs,
		Metadata:      cloneMetadata(raw.Metadata),
	}, nil
}

func cloneMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
