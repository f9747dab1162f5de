package sink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
	"github.com/orderflow-systems/orderflow-pipeline/internal/sink"
)

// flakyStore fails the first failures calls to Insert, then succeeds.
type flakyStore struct {
	failures int
	calls    int
}

func (s *flakyStore) Insert(ctx context.Context, ev models.NormalizedEvent) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("store unavailable")
	}
	return nil
}

func record() models.NormalizedEvent {
	return models.NormalizedEvent{
		OrderID:   "o1",
		Status:    models.StatusCompleted,
		Amount:    10,
		EventTS:   "2025-10-01T12:00:00Z",
		CreatedTS: "2025-10-01T11:59:00Z",
	}
}

// sleepRecorder captures backoff waits instead of sleeping.
func sleepRecorder(waits *[]time.Duration) sink.Option {
	return sink.WithSleep(func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	})
}

func TestWriter_FirstAttemptSucceeds(t *testing.T) {
	store := &flakyStore{failures: 0}
	var waits []time.Duration
	w := sink.NewWriter(store, sleepRecorder(&waits))

	err := w.Write(context.Background(), record())

	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
	assert.Empty(t, waits)
}

func TestWriter_SucceedsOnThirdAttempt(t *testing.T) {
	store := &flakyStore{failures: 2}
	var waits []time.Duration
	w := sink.NewWriter(store, sleepRecorder(&waits))

	err := w.Write(context.Background(), record())

	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	// attempt 1 failure waits 2 units, attempt 2 failure waits 4 units
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
}

func TestWriter_FatalAfterThreeFailures(t *testing.T) {
	store := &flakyStore{failures: 3}
	var waits []time.Duration
	w := sink.NewWriter(store, sleepRecorder(&waits))

	err := w.Write(context.Background(), record())

	require.Error(t, err)
	assert.Equal(t, 3, store.calls, "no attempts beyond the budget")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits,
		"no backoff wait after the final attempt")

	var fatal *sink.FatalWriteError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, "o1", fatal.OrderID)
	assert.Len(t, fatal.Attempts, 3)
	assert.Contains(t, fatal.Error(), "o1")
	assert.Contains(t, fatal.Error(), "3 attempts")
}

func TestWriter_BackoffUnitConfigurable(t *testing.T) {
	store := &flakyStore{failures: 1}
	var waits []time.Duration
	w := sink.NewWriter(store,
		sink.WithBackoffUnit(10*time.Millisecond), sleepRecorder(&waits))

	err := w.Write(context.Background(), record())

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{20 * time.Millisecond}, waits)
}

func TestWriter_ContextCancelledDuringBackoff(t *testing.T) {
	store := &flakyStore{failures: 3}
	ctx, cancel := context.WithCancel(context.Background())

	w := sink.NewWriter(store, sink.WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	err := w.Write(ctx, record())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.calls, "no further attempts after cancellation")

	var fatal *sink.FatalWriteError
	assert.False(t, errors.As(err, &fatal), "cancellation is not a fatal write")
}
