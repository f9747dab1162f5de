package aggregate

import (
	"context"
	"sync"

	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
)

// MemoryStore keeps order state in process memory. The compare-and-
// replace happens under one lock, so concurrent producers cannot
// interleave between the recency check and the replacement.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]models.AggregatedOrder
}

// NewMemoryStore returns an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]models.AggregatedOrder)}
}

// Apply keeps the more recent of the stored state and ev.
func (s *MemoryStore) Apply(ctx context.Context, ev models.NormalizedEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.orders[ev.OrderID]
	if exists && !Replaces(ev.EventTS, current.EventTS) {
		return false, nil
	}

	s.orders[ev.OrderID] = current.FromEvent(ev)
	return true, nil
}

// Get returns the current state for an order, if any.
func (s *MemoryStore) Get(ctx context.Context, orderID string) (models.AggregatedOrder, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.AggregatedOrder{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	return order, ok, nil
}

// Snapshot returns a copy of the full mapping.
func (s *MemoryStore) Snapshot(ctx context.Context) (map[string]models.AggregatedOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.AggregatedOrder, len(s.orders))
	for id, order := range s.orders {
		out[id] = order
	}
	return out, nil
}
