package aggregate_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow-systems/orderflow-pipeline/internal/aggregate"
	"github.com/orderflow-systems/orderflow-pipeline/internal/metrics"
	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
)

func event(orderID, status, ts string) models.NormalizedEvent {
	return models.NormalizedEvent{
		OrderID:   orderID,
		Status:    status,
		Amount:    10,
		EventTS:   ts,
		CreatedTS: ts,
	}
}

// stores returns each StateStore implementation under a name, so every
// aggregation test runs against all of them.
func stores(t *testing.T) map[string]aggregate.StateStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]aggregate.StateStore{
		"memory": aggregate.NewMemoryStore(),
		"redis":  aggregate.NewRedisStore(client),
	}
}

func TestAggregator_LatestWinsEitherOrder(t *testing.T) {
	created := event("o3", models.StatusCreated, "2025-10-01T10:00:00Z")
	completed := event("o3", models.StatusCompleted, "2025-10-01T12:00:00Z")

	orderings := map[string][]models.NormalizedEvent{
		"created first":   {created, completed},
		"completed first": {completed, created},
	}

	for name, events := range orderings {
		t.Run(name, func(t *testing.T) {
			for storeName, store := range stores(t) {
				t.Run(storeName, func(t *testing.T) {
					agg := aggregate.New(store)

					result, err := agg.ApplyAll(context.Background(), events)
					require.NoError(t, err)

					require.Contains(t, result, "o3")
					assert.Equal(t, models.StatusCompleted, result["o3"].Status)
					assert.Equal(t, "2025-10-01T12:00:00Z", result["o3"].EventTS)
				})
			}
		})
	}
}

func TestAggregator_Idempotent(t *testing.T) {
	for storeName, store := range stores(t) {
		t.Run(storeName, func(t *testing.T) {
			ctx := context.Background()
			agg := aggregate.New(store)

			events := []models.NormalizedEvent{
				event("o1", models.StatusCreated, "2025-10-01T10:00:00Z"),
				event("o1", models.StatusCompleted, "2025-10-01T12:00:00Z"),
			}

			first, err := agg.ApplyAll(ctx, events)
			require.NoError(t, err)

			// Re-aggregating a superset of what was already seen must
			// never regress to an older state.
			second, err := agg.ApplyAll(ctx, events)
			require.NoError(t, err)
			assert.Equal(t, first, second)

			replaced, err := agg.Apply(ctx, events[0])
			require.NoError(t, err)
			assert.False(t, replaced, "older event must not replace newer state")
		})
	}
}

func TestAggregator_EqualTimestampLastWriteWins(t *testing.T) {
	for storeName, store := range stores(t) {
		t.Run(storeName, func(t *testing.T) {
			ctx := context.Background()
			agg := aggregate.New(store)

			first := event("o1", models.StatusCreated, "2025-10-01T12:00:00Z")
			second := event("o1", models.StatusCancelled, "2025-10-01T12:00:00Z")

			_, err := agg.Apply(ctx, first)
			require.NoError(t, err)
			replaced, err := agg.Apply(ctx, second)
			require.NoError(t, err)
			assert.True(t, replaced, "equal event_ts: later write wins")

			current, ok, err := agg.Get(ctx, "o1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, models.StatusCancelled, current.Status)
		})
	}
}

func TestAggregator_IndependentOrders(t *testing.T) {
	for storeName, store := range stores(t) {
		t.Run(storeName, func(t *testing.T) {
			agg := aggregate.New(store)

			result, err := agg.ApplyAll(context.Background(), []models.NormalizedEvent{
				event("a", models.StatusCreated, "2025-10-01T10:00:00Z"),
				event("b", models.StatusCompleted, "2025-10-01T11:00:00Z"),
				event("a", models.StatusFailed, "2025-10-01T09:00:00Z"),
			})
			require.NoError(t, err)

			require.Len(t, result, 2)
			assert.Equal(t, models.StatusCreated, result["a"].Status)
			assert.Equal(t, models.StatusCompleted, result["b"].Status)
		})
	}
}

func TestAggregator_GetMissingOrder(t *testing.T) {
	for storeName, store := range stores(t) {
		t.Run(storeName, func(t *testing.T) {
			agg := aggregate.New(store)

			_, ok, err := agg.Get(context.Background(), "nope")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestAggregator_SnapshotRefreshesTrackedGauge(t *testing.T) {
	agg := aggregate.New(aggregate.NewMemoryStore())

	events := []models.NormalizedEvent{
		event("g1", models.StatusCreated, "2025-10-01T10:00:00Z"),
		event("g2", models.StatusCompleted, "2025-10-01T11:00:00Z"),
		event("g3", models.StatusCancelled, "2025-10-01T12:00:00Z"),
	}
	snap, err := agg.ApplyAll(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, snap, 3)

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.OrdersTracked))
}

func TestReplaces(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		current   string
		want      bool
	}{
		{"strictly newer", "2025-10-01T12:00:00Z", "2025-10-01T10:00:00Z", true},
		{"strictly older", "2025-10-01T10:00:00Z", "2025-10-01T12:00:00Z", false},
		{"equal keeps last write", "2025-10-01T12:00:00Z", "2025-10-01T12:00:00Z", true},
		{"sub-second newer", "2025-10-01T12:00:00.5Z", "2025-10-01T12:00:00Z", true},
		{"sub-second older", "2025-10-01T12:00:00Z", "2025-10-01T12:00:00.5Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, aggregate.Replaces(tt.candidate, tt.current))
		})
	}
}
