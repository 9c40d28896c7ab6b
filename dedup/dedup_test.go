package dedup_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/dedup"
	"github.com/signalforge/decisioncore/event"
)

func mustEvent(t *testing.T, correlationID, symbol string, signal any) event.Event {
	t.Helper()
	ts := int64(1_700_000_000_000)
	ev, err := event.Validate(event.Raw{
		CorrelationID: correlationID,
		EventType:     "ict_signal",
		Symbol:        symbol,
		Signal:        signal,
		TsMs:          &ts,
	})
	require.NoError(t, err)
	return ev
}

func TestSeen_FirstAdmitsSecondDuplicate(t *testing.T) {
	c := dedup.New(dedup.Options{TTL: time.Minute, MaxEntries: 10})
	ev := mustEvent(t, "c1", "EURUSD", map[string]any{"type": "CHoCH", "strength": 0.8})
	fp := dedup.Fingerprint(ev)

	require.False(t, c.Seen(fp), "first admission must not be a duplicate")
	require.True(t, c.Seen(fp), "second admission within TTL must be a duplicate")
}

func TestFingerprint_StructurallyEquivalentSignalsCollide(t *testing.T) {
	evA := mustEvent(t, "c1", "EURUSD", map[string]any{"type": "CHoCH", "strength": 0.8})
	evB := mustEvent(t, "c1", "EURUSD", map[string]any{"strength": 0.8, "type": "CHoCH"})

	require.Equal(t, dedup.Fingerprint(evA), dedup.Fingerprint(evB))
}

func TestFingerprint_DifferentSymbolDoesNotCollide(t *testing.T) {
	evA := mustEvent(t, "c1", "EURUSD", map[string]any{"type": "CHoCH"})
	evB := mustEvent(t, "c1", "GBPUSD", map[string]any{"type": "CHoCH"})

	require.NotEqual(t, dedup.Fingerprint(evA), dedup.Fingerprint(evB))
}

func TestSeen_ExpiresAfterTTL(t *testing.T) {
	c := dedup.New(dedup.Options{TTL: 10 * time.Millisecond, MaxEntries: 10})
	ev := mustEvent(t, "c1", "EURUSD", map[string]any{"type": "CHoCH"})
	fp := dedup.Fingerprint(ev)

	require.False(t, c.Seen(fp))
	time.Sleep(30 * time.Millisecond)
	require.False(t, c.Seen(fp), "entry must expire after TTL elapses")
}

func TestSeen_EvictsLeastRecentlyUsedBeyondCap(t *testing.T) {
	c := dedup.New(dedup.Options{TTL: time.Minute, MaxEntries: 2})

	require.False(t, c.Seen("a"))
	require.False(t, c.Seen("b"))
	require.False(t, c.Seen("c")) // evicts "a"

	require.Equal(t, 2, c.Len())
	require.False(t, c.Seen("a"), "a should have been evicted and re-admitted as new")
}
