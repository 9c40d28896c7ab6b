package dlq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/decision"
	"github.com/signalforge/decisioncore/dlq"
)

func TestEnqueue_DropsOldestAtCapacity(t *testing.T) {
	q := dlq.New(dlq.Options{MaxSize: 2})
	q.Enqueue(decision.Decision{CorrelationID: "a"})
	q.Enqueue(decision.Decision{CorrelationID: "b"})
	q.Enqueue(decision.Decision{CorrelationID: "c"})

	require.Equal(t, 2, q.Size())
	require.Equal(t, int64(1), q.DroppedCount())
}

func TestRetryOnce_SuccessRemovesEntry(t *testing.T) {
	q := dlq.New(dlq.Options{MaxSize: 10})
	q.Enqueue(decision.Decision{CorrelationID: "a"})

	q.RetryOnce(context.Background(), func(_ context.Context, _ decision.Decision) error {
		return nil
	})

	require.Equal(t, 0, q.Size())
}

func TestRetryOnce_FailureReschedulesWithBackoff(t *testing.T) {
	q := dlq.New(dlq.Options{MaxSize: 10, BaseBackoff: time.Hour})
	q.Enqueue(decision.Decision{CorrelationID: "a"})

	calls := 0
	insert := func(_ context.Context, _ decision.Decision) error {
		calls++
		return errors.New("still down")
	}

	q.RetryOnce(context.Background(), insert)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, q.Size(), "entry must remain queued after a failed retry")

	// Base backoff is an hour, capped by the default MaxBackoff of 60s; an
	// immediate second RetryOnce must not re-attempt.
	q.RetryOnce(context.Background(), insert)
	require.Equal(t, 1, calls, "entry must not be retried again before its backoff elapses")
}

func TestRetryOnce_ExhaustsAttemptsAndGoesTerminal(t *testing.T) {
	q := dlq.New(dlq.Options{MaxSize: 10, MaxAttempts: 2, BaseBackoff: time.Nanosecond, MaxBackoff: time.Nanosecond})
	q.Enqueue(decision.Decision{CorrelationID: "a"})

	always := func(_ context.Context, _ decision.Decision) error {
		return errors.New("still down")
	}

	q.RetryOnce(context.Background(), always)
	time.Sleep(time.Millisecond)
	q.RetryOnce(context.Background(), always)

	require.Equal(t, 0, q.Size())
	require.Equal(t, int64(1), q.TerminalCount())
}
