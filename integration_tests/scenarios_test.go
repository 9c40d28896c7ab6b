// Package integrationtests reproduces the literal end-to-end scenarios of
// spec §8 ("End-to-end scenarios") against the real component wiring
// (policy store, dedup cache, cooldown manager, persister, DLQ) rather
// than mocking any of them away, the one exception being the persistence
// Store itself, which is stood in for by an in-memory double so the suite
// has no external dependency.
package integrationtests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/cooldown"
	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/dedup"
	"github.com/signalforge/decisioncore/dlq"
	"github.com/signalforge/decisioncore/event"
	"github.com/signalforge/decisioncore/memory"
	"github.com/signalforge/decisioncore/orchestrator"
	"github.com/signalforge/decisioncore/persistence"
	"github.com/signalforge/decisioncore/policy"
	"github.com/signalforge/decisioncore/reasoning"
	"github.com/signalforge/decisioncore/statemachine"
)

// t0 is the fixed wall-clock anchor spec §8 uses for every scenario.
const t0 = int64(1_700_000_000_000)

// inMemoryStore is a minimal in-process persistence.Store double: enough to
// exercise the real Persister/DLQ path without an external database.
type inMemoryStore struct {
	mu          sync.Mutex
	decisions   []decision.Decision
	failInserts bool
}

func (s *inMemoryStore) InsertDecision(_ context.Context, d decision.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInserts {
		return errors.New("primary store unavailable")
	}
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *inMemoryStore) InsertOutcome(context.Context, decision.DecisionOutcome) error { return nil }

func (s *inMemoryStore) ByCorrelationID(_ context.Context, correlationID string) (decision.Decision, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.decisions {
		if d.CorrelationID == correlationID {
			return d, true, nil
		}
	}
	return decision.Decision{}, false, nil
}

func (s *inMemoryStore) BySymbolSince(context.Context, string, int64) ([]decision.Decision, error) {
	return nil, nil
}

func (s *inMemoryStore) LastN(context.Context, int) ([]decision.Decision, error) { return nil, nil }

func (s *inMemoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decisions)
}

var _ memory.Reader = (*inMemoryStore)(nil)

func ichochSignal(strength float64) map[string]any {
	return map[string]any{"type": "CHoCH", "strength": strength}
}

func reviewSuggestion(confidence float64) reasoning.Func {
	return func(_ context.Context, _ event.Event, _ memory.Reader) ([]decision.AdvisorySignal, error) {
		return []decision.AdvisorySignal{
			{SignalType: decision.SignalActionSuggestion, Payload: map[string]any{"action": "review"}, Confidence: &confidence},
		}, nil
	}
}

func newScenarioHandler(store *inMemoryStore, queue *dlq.Queue, policies *policy.Store, reasonFn reasoning.Func) *orchestrator.Handler {
	invoker := reasoning.New(map[string]reasoning.Func{"default": reasonFn}, "default")
	persister := persistence.NewPersister(persistence.PersisterOptions{Store: store, Queue: queue})
	return orchestrator.New(orchestrator.Deps{
		DedupCache:       dedup.New(dedup.Options{}),
		Cooldowns:        cooldown.New(),
		Policies:         policies,
		Invoker:          invoker,
		Persister:        persister,
		Memory:           store,
		ReasoningTimeout: 500 * time.Millisecond,
		ReasoningMode:    "default",
	})
}

// TestScenario_S1_HappyPath reproduces spec §8 S1.
func TestScenario_S1_HappyPath(t *testing.T) {
	store := &inMemoryStore{}
	policies := policy.NewStore([]policy.Backend{
		policy.NewStaticBackend(map[string]policy.Policy{
			"cooldown":      {"cooldown_ms": int64(0)},
			"signal_filter": {"min_confidence": 0.5},
		}),
		policy.NewDefaultBackend(nil),
	}, policy.Options{})
	h := newScenarioHandler(store, nil, policies, reviewSuggestion(0.9))

	ts := t0
	result := h.Handle(context.Background(), event.Raw{
		CorrelationID: "c1",
		EventType:     "ict_signal",
		Symbol:        "EURUSD",
		Timeframe:     "15m",
		Signal:        ichochSignal(0.8),
		TsMs:          &ts,
	})

	require.Equal(t, statemachine.StateProcessed, result.EventState)
	signals, ok := result.Metadata["advisory_signals"].([]decision.AdvisorySignal)
	require.True(t, ok)
	require.Len(t, signals, 1)
	require.Len(t, result.PolicyDecisions, 1)
	require.Equal(t, 1, store.count())

	_, found, err := store.ByCorrelationID(context.Background(), result.CorrelationID)
	require.NoError(t, err)
	require.True(t, found)
}

// TestScenario_S2_Duplicate reproduces spec §8 S2.
func TestScenario_S2_Duplicate(t *testing.T) {
	store := &inMemoryStore{}
	policies := policy.NewStore([]policy.Backend{
		policy.NewStaticBackend(map[string]policy.Policy{
			"cooldown":      {"cooldown_ms": int64(0)},
			"signal_filter": {"min_confidence": 0.5},
		}),
		policy.NewDefaultBackend(nil),
	}, policy.Options{})
	h := newScenarioHandler(store, nil, policies, reviewSuggestion(0.9))

	first := t0
	h.Handle(context.Background(), event.Raw{
		CorrelationID: "c1", EventType: "ict_signal", Symbol: "EURUSD", Timeframe: "15m",
		Signal: ichochSignal(0.8), TsMs: &first,
	})
	require.Equal(t, 1, store.count())

	second := t0 + 100
	result := h.Handle(context.Background(), event.Raw{
		CorrelationID: "c1", EventType: "ict_signal", Symbol: "EURUSD", Timeframe: "15m",
		Signal: ichochSignal(0.8), TsMs: &second,
	})

	require.Equal(t, statemachine.StateDiscarded, result.EventState)
	require.Contains(t, result.Metadata["reason"], "duplicate")
	require.Equal(t, 1, store.count())
}

// TestScenario_S3_Cooldown reproduces spec §8 S3.
func TestScenario_S3_Cooldown(t *testing.T) {
	store := &inMemoryStore{}
	policies := policy.NewStore([]policy.Backend{
		policy.NewStaticBackend(map[string]policy.Policy{
			"cooldown":      {"cooldown_ms": int64(60_000)},
			"signal_filter": {"min_confidence": 0.5},
		}),
		policy.NewDefaultBackend(nil),
	}, policy.Options{})
	h := newScenarioHandler(store, nil, policies, reviewSuggestion(0.9))

	tsA := t0
	resultA := h.Handle(context.Background(), event.Raw{
		CorrelationID: "a", EventType: "ict_signal", Symbol: "EURUSD", Timeframe: "15m",
		Signal: ichochSignal(0.8), TsMs: &tsA,
	})
	require.Equal(t, statemachine.StateProcessed, resultA.EventState)

	tsB := t0 + 10_000
	resultB := h.Handle(context.Background(), event.Raw{
		CorrelationID: "b", EventType: "ict_signal", Symbol: "EURUSD", Timeframe: "15m",
		Signal: ichochSignal(0.95), TsMs: &tsB,
	})
	require.Equal(t, statemachine.StateDeferred, resultB.EventState)
	require.Equal(t, "cooldown", resultB.Metadata["reason"])
	require.EqualValues(t, 50_000, resultB.Metadata["retry_after_ms"])
	require.Equal(t, 1, store.count())
}

// TestScenario_S4_ReasoningTimeout reproduces spec §8 S4.
func TestScenario_S4_ReasoningTimeout(t *testing.T) {
	store := &inMemoryStore{}
	policies := policy.NewStore([]policy.Backend{policy.NewDefaultBackend(nil)}, policy.Options{})
	slow := func(ctx context.Context, _ event.Event, _ memory.Reader) ([]decision.AdvisorySignal, error) {
		select {
		case <-time.After(2 * time.Second):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	invoker := reasoning.New(map[string]reasoning.Func{"default": slow}, "default")
	h := orchestrator.New(orchestrator.Deps{
		Policies:         policies,
		Invoker:          invoker,
		Persister:        persistence.NewPersister(persistence.PersisterOptions{Store: store}),
		Memory:           store,
		ReasoningTimeout: 500 * time.Millisecond,
		ReasoningMode:    "default",
	})

	ts := t0
	result := h.Handle(context.Background(), event.Raw{
		CorrelationID: "c4", EventType: "ict_signal", Symbol: "EURUSD", Timeframe: "15m",
		Signal: ichochSignal(0.8), TsMs: &ts,
	})

	require.Equal(t, statemachine.StateProcessed, result.EventState)
	errs, ok := result.Metadata["advisory_errors"].([]decision.AdvisorySignal)
	require.True(t, ok)
	require.Len(t, errs, 1)
	require.Equal(t, decision.SignalTimeout, errs[0].SignalType)
	require.Equal(t, "reasoning_timeout_exceeded", errs[0].Error)
	require.Equal(t, 1, store.count())
}

// TestScenario_S5_PersistenceFailureEscalates reproduces spec §8 S5.
func TestScenario_S5_PersistenceFailureEscalates(t *testing.T) {
	store := &inMemoryStore{failInserts: true}
	queue := dlq.New(dlq.Options{})
	policies := policy.NewStore([]policy.Backend{policy.NewDefaultBackend(nil)}, policy.Options{})
	h := newScenarioHandler(store, queue, policies, reviewSuggestion(0.9))

	ts := t0
	result := h.Handle(context.Background(), event.Raw{
		CorrelationID: "c5", EventType: "ict_signal", Symbol: "EURUSD", Timeframe: "15m",
		Signal: ichochSignal(0.8), TsMs: &ts,
	})

	require.Equal(t, statemachine.StateEscalated, result.EventState)
	require.Equal(t, 1, queue.Size())
	require.Equal(t, 0, store.count())

	store.mu.Lock()
	store.failInserts = false
	store.mu.Unlock()
	queue.RetryOnce(context.Background(), store.InsertDecision)

	require.Equal(t, 0, queue.Size())
	require.Equal(t, 1, store.count())
}
