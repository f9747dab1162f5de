package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
)

// PostgresStore writes normalized events to the order_events table.
// The table is append-only; the consolidation job reduces it to one row
// per order in the orders table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a store to PostgreSQL.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreFromPool wraps an existing pool. The caller keeps
// ownership of the pool's lifecycle.
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool for components sharing the same
// database, such as the consolidation job.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Insert appends one normalized event.
func (s *PostgresStore) Insert(ctx context.Context, ev models.NormalizedEvent) error {
	query := `
		INSERT INTO order_events (order_id, status, amount, event_ts, created_ts)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		ev.OrderID, ev.Status, ev.Amount, ev.EventTS, ev.CreatedTS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order event: %w", err)
	}

	return nil
}

// CompletedOrders returns consolidated orders in COMPLETED state,
// joined with any attribution data, for the conversion upload run.
func (s *PostgresStore) CompletedOrders(ctx context.Context) ([]models.AggregatedOrder, error) {
	query := `
		SELECT order_id, status, amount, event_ts, COALESCE(created_ts, ''),
		       COALESCE(gclid, ''), COALESCE(currency_code, '')
		FROM orders
		WHERE status = 'COMPLETED'
		ORDER BY order_id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed orders: %w", err)
	}
	defer rows.Close()

	var orders []models.AggregatedOrder
	for rows.Next() {
		var o models.AggregatedOrder
		if err := rows.Scan(
			&o.OrderID, &o.Status, &o.Amount, &o.EventTS, &o.CreatedTS,
			&o.Gclid, &o.CurrencyCode,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read completed orders: %w", err)
	}

	return orders, nil
}
