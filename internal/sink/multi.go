package sink

import (
	"context"

	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
)

// MultiStore fans one insert out to several stores. The first failure
// aborts and is returned, so the writer's retry covers all of them.
// Stores must tolerate re-inserting an already written record.
type MultiStore struct {
	stores []Store
}

// NewMultiStore combines stores into one destination.
func NewMultiStore(stores ...Store) *MultiStore {
	return &MultiStore{stores: stores}
}

func (m *MultiStore) Insert(ctx context.Context, ev models.NormalizedEvent) error {
	for _, s := range m.stores {
		if err := s.Insert(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
