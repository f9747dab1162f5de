// Package aggregate reduces normalized order events to one current
// state per order: the event with the greatest event_ts. The reduction
// is commutative, associative, and idempotent, which is what makes
// at-least-once delivery and out-of-order arrival tolerable.
package aggregate

import (
	"context"

	"github.com/orderflow-systems/orderflow-pipeline/internal/metrics"
	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
	"github.com/orderflow-systems/orderflow-pipeline/internal/timestamp"
)

// StateStore owns the order_id -> current state mapping. Apply must be
// atomic per order: compare recency and replace only if the candidate
// wins. Nothing outside the store mutates the mapping.
type StateStore interface {
	// Apply keeps the more recent of the stored state and ev.
	// It reports whether ev became the current state.
	Apply(ctx context.Context, ev models.NormalizedEvent) (bool, error)

	// Get returns the current state for an order, if any.
	Get(ctx context.Context, orderID string) (models.AggregatedOrder, bool, error)

	// Snapshot returns a copy of the full mapping.
	Snapshot(ctx context.Context) (map[string]models.AggregatedOrder, error)
}

// Replaces reports whether candidate should replace current under the
// recency rule: strictly greater event_ts wins, and an equal event_ts
// also wins so that the event processed later takes effect
// (last-write-wins under identical timestamps).
func Replaces(candidate, current string) bool {
	ct, cerr := timestamp.Parse(candidate)
	st, serr := timestamp.Parse(current)
	if cerr != nil || serr != nil {
		// Canonical strings always parse; fall back to string order
		// if a store was seeded with something else.
		return candidate >= current
	}
	return !ct.Before(st)
}

// Aggregator applies events to an injected state store. Construct one
// per pipeline instance; stores are not shared implicitly.
type Aggregator struct {
	store StateStore
}

// New returns an aggregator over the given store.
func New(store StateStore) *Aggregator {
	return &Aggregator{store: store}
}

// Apply folds one normalized event into the order's current state.
// It reports whether the event replaced (or created) that state.
func (a *Aggregator) Apply(ctx context.Context, ev models.NormalizedEvent) (bool, error) {
	return a.store.Apply(ctx, ev)
}

// ApplyAll folds a finite batch of events and returns the resulting
// mapping. Arrival order within the batch only matters for events with
// identical event_ts, where the later one wins.
func (a *Aggregator) ApplyAll(ctx context.Context, events []models.NormalizedEvent) (map[string]models.AggregatedOrder, error) {
	for _, ev := range events {
		if _, err := a.store.Apply(ctx, ev); err != nil {
			return nil, err
		}
	}
	return a.Snapshot(ctx)
}

// Get returns the current state for an order, if any.
func (a *Aggregator) Get(ctx context.Context, orderID string) (models.AggregatedOrder, bool, error) {
	return a.store.Get(ctx, orderID)
}

// Snapshot returns a copy of the order_id -> state mapping and refreshes
// the tracked-orders gauge.
func (a *Aggregator) Snapshot(ctx context.Context) (map[string]models.AggregatedOrder, error) {
	snap, err := a.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	metrics.OrdersTracked.Set(float64(len(snap)))
	return snap, nil
}
