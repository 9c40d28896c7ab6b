// Package persistence implements the decision persister (spec §4.8,
// component C8) and the append-only store it writes to (spec §6.4).
package persistence

import (
	"context"

	"github.com/signalforge/decisioncore/decision"
)

// Store is the append-only persistence surface for Decision and
// DecisionOutcome rows (spec §6.4: "No UPDATE or DELETE DDL on these
// tables"). It also satisfies memory.Reader so the same backing store can
// be handed to reasoning functions as a read-only accessor.
type Store interface {
	InsertDecision(ctx context.Context, d decision.Decision) error
	InsertOutcome(ctx context.Context, o decision.DecisionOutcome) error

	ByCorrelationID(ctx context.Context, correlationID string) (decision.Decision, bool, error)
	BySymbolSince(ctx context.Context, symbol string, sinceMs int64) ([]decision.Decision, error)
	LastN(ctx context.Context, n int) ([]decision.Decision, error)
}

// Cache is the optional write-through cache (spec §6.5): a best-effort
// get/setex key→bytes store whose absence or failure must never affect
// correctness.
type Cache interface {
	SetSummary(ctx context.Context, decisionID string, summary []byte, ttlMs int64) error
}
