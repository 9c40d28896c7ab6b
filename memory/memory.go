// Package memory implements the read-only memory accessor (spec §6.3)
// handed to reasoning functions and reporting services: queries over the
// persisted Decision and DecisionOutcome tables that never write.
package memory

import (
	"context"

	"github.com/signalforge/decisioncore/decision"
)

// Reader exposes read-only queries over persisted decisions. Implementations
// must never mutate the underlying store.
type Reader interface {
	// ByCorrelationID returns the Decision recorded for correlationID, if
	// any.
	ByCorrelationID(ctx context.Context, correlationID string) (decision.Decision, bool, error)
	// BySymbolSince returns Decisions for symbol with ts_ms >= sinceMs,
	// ordered oldest first.
	BySymbolSince(ctx context.Context, symbol string, sinceMs int64) ([]decision.Decision, error)
	// LastN returns the n most recently persisted Decisions, newest first.
	LastN(ctx context.Context, n int) ([]decision.Decision, error)
}
