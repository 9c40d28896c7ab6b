package persistence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/dlq"
	"github.com/signalforge/decisioncore/persistence"
)

type fakeStore struct {
	insertErr error
	inserted  []decision.Decision
}

func (s *fakeStore) InsertDecision(_ context.Context, d decision.Decision) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, d)
	return nil
}
func (s *fakeStore) InsertOutcome(context.Context, decision.DecisionOutcome) error { return nil }
func (s *fakeStore) ByCorrelationID(context.Context, string) (decision.Decision, bool, error) {
	return decision.Decision{}, false, nil
}
func (s *fakeStore) BySymbolSince(context.Context, string, int64) ([]decision.Decision, error) {
	return nil, nil
}
func (s *fakeStore) LastN(context.Context, int) ([]decision.Decision, error) { return nil, nil }

type fakeCache struct {
	setErr error
	calls  int
}

func (c *fakeCache) SetSummary(context.Context, string, []byte, int64) error {
	c.calls++
	return c.setErr
}

func TestPersist_SuccessWritesThroughToCache(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{}
	p := persistence.NewPersister(persistence.PersisterOptions{Store: store, Cache: cache})

	d, escalated := p.Persist(context.Background(), decision.Decision{CorrelationID: "c1"})
	require.False(t, escalated)
	require.NotEmpty(t, d.DecisionHash)
	require.Len(t, store.inserted, 1)
	require.Equal(t, 1, cache.calls)
}

func TestPersist_CacheFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{setErr: errors.New("redis down")}
	p := persistence.NewPersister(persistence.PersisterOptions{Store: store, Cache: cache})

	_, escalated := p.Persist(context.Background(), decision.Decision{CorrelationID: "c1"})
	require.False(t, escalated, "a cache failure must never escalate the event")
}

func TestPersist_PrimaryFailureEscalatesAndEnqueues(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("mongo down")}
	q := dlq.New(dlq.Options{MaxSize: 10})
	p := persistence.NewPersister(persistence.PersisterOptions{Store: store, Queue: q})

	d, escalated := p.Persist(context.Background(), decision.Decision{CorrelationID: "c1"})
	require.True(t, escalated)
	require.NotEmpty(t, d.DecisionHash)
	require.Equal(t, 1, q.Size())
}

func TestPersist_HashIsDeterministic(t *testing.T) {
	store := &fakeStore{}
	p := persistence.NewPersister(persistence.PersisterOptions{Store: store})

	in := decision.Decision{CorrelationID: "c1", Symbol: "EURUSD", Confidence: 0.9}
	d1, _ := p.Persist(context.Background(), in)

	store2 := &fakeStore{}
	p2 := persistence.NewPersister(persistence.PersisterOptions{Store: store2})
	d2, _ := p2.Persist(context.Background(), in)

	require.Equal(t, d1.DecisionHash, d2.DecisionHash)
}
