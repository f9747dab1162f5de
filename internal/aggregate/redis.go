package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
)

const (
	// keyPrefix namespaces order state keys in a shared Redis.
	keyPrefix = "orderflow:orders:"

	// casRetries bounds the optimistic compare-and-replace loop when
	// competing consumers race on the same order.
	casRetries = 5
)

// RedisStore keeps order state in Redis so multiple consumer instances
// share one mapping. The compare-and-replace uses WATCH/MULTI per key:
// if another instance updates the order between read and write, the
// transaction aborts and the recency check re-runs against the newer
// state.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a state store backed by the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Apply keeps the more recent of the stored state and ev.
func (s *RedisStore) Apply(ctx context.Context, ev models.NormalizedEvent) (bool, error) {
	key := keyPrefix + ev.OrderID
	replaced := false

	txn := func(tx *redis.Tx) error {
		replaced = false
		var base models.AggregatedOrder

		data, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// First event for this order.
		case err != nil:
			return fmt.Errorf("get order state: %w", err)
		default:
			if err := json.Unmarshal([]byte(data), &base); err != nil {
				return fmt.Errorf("unmarshal order state: %w", err)
			}
			if !Replaces(ev.EventTS, base.EventTS) {
				return nil
			}
		}

		// FromEvent keeps attribution fields from the stored state.
		next, err := json.Marshal(base.FromEvent(ev))
		if err != nil {
			return fmt.Errorf("marshal order state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err != nil {
			return err
		}

		replaced = true
		return nil
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return replaced, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, err
	}

	return false, fmt.Errorf("apply order %s: too many concurrent updates", ev.OrderID)
}

// Get returns the current state for an order, if any.
func (s *RedisStore) Get(ctx context.Context, orderID string) (models.AggregatedOrder, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+orderID).Result()
	if errors.Is(err, redis.Nil) {
		return models.AggregatedOrder{}, false, nil
	}
	if err != nil {
		return models.AggregatedOrder{}, false, fmt.Errorf("get order state: %w", err)
	}

	var order models.AggregatedOrder
	if err := json.Unmarshal([]byte(data), &order); err != nil {
		return models.AggregatedOrder{}, false, fmt.Errorf("unmarshal order state: %w", err)
	}
	return order, true, nil
}

// Snapshot returns a copy of the full mapping via key scan.
func (s *RedisStore) Snapshot(ctx context.Context) (map[string]models.AggregatedOrder, error) {
	out := make(map[string]models.AggregatedOrder)

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get order state %s: %w", key, err)
		}

		var order models.AggregatedOrder
		if err := json.Unmarshal([]byte(data), &order); err != nil {
			return nil, fmt.Errorf("unmarshal order state %s: %w", key, err)
		}
		out[order.OrderID] = order
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan order state: %w", err)
	}

	return out, nil
}
