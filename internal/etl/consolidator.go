// Package etl rebuilds the latest-per-order view from the event store
// in bulk. The row predicates restate the streaming validator's policy
// as SQL so both paths reach the same accept/reject verdicts.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderflow-systems/orderflow-pipeline/common/logging"
)

// invalidRowPredicate matches event rows the streaming validator would
// have rejected: missing order id, missing or negative amount, missing
// status, or a missing or empty event timestamp. Bulk loads bypass the
// streaming path, so the consolidation run re-applies the policy here.
const invalidRowPredicate = `
	order_id IS NULL OR order_id = ''
	OR amount IS NULL OR amount < 0
	OR status IS NULL OR status = ''
	OR event_ts IS NULL OR event_ts = ''
`

// deadLetterSQL copies invalid rows verbatim into the dead letter table
// with a generic reason. The rows keep their original shape as JSON
// text so nothing is lost in translation.
const deadLetterSQL = `
	INSERT INTO order_events_dlq (id, event, reason, observed_at)
	SELECT gen_random_uuid(), row_to_json(e)::text, 'failed validation', now()
	FROM order_events e
	WHERE ` + invalidRowPredicate

// purgeInvalidSQL removes the rows just dead-lettered so repeated runs
// do not duplicate dead letter entries.
const purgeInvalidSQL = `
	DELETE FROM order_events
	WHERE ` + invalidRowPredicate

// consolidateSQL rebuilds the orders view as the latest event per
// order. Ties on event_ts fall to the higher ingestion sequence, so
// the last-seen event wins. The upsert only moves an order forward;
// attribution columns (gclid, currency_code) are left untouched.
const consolidateSQL = `
	INSERT INTO orders (order_id, status, amount, event_ts, created_ts, updated_at)
	SELECT DISTINCT ON (order_id)
		order_id, status, amount, event_ts, created_ts, now()
	FROM order_events
	WHERE NOT (` + invalidRowPredicate + `)
	ORDER BY order_id, event_ts::timestamptz DESC, ingested_seq DESC
	ON CONFLICT (order_id) DO UPDATE SET
		status = EXCLUDED.status,
		amount = EXCLUDED.amount,
		event_ts = EXCLUDED.event_ts,
		created_ts = EXCLUDED.created_ts,
		updated_at = EXCLUDED.updated_at
	WHERE EXCLUDED.event_ts::timestamptz >= orders.event_ts::timestamptz
`

// Result reports what a consolidation run did.
type Result struct {
	DeadLettered int64
	Consolidated int64
	Elapsed      time.Duration
}

// Consolidator runs the bulk latest-per-order consolidation.
type Consolidator struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConsolidator returns a consolidator over the given pool.
func NewConsolidator(pool *pgxpool.Pool) *Consolidator {
	return &Consolidator{
		pool:   pool,
		logger: slog.Default().With(slog.String("component", "etl")),
	}
}

// Run executes one consolidation pass in a single transaction: invalid
// rows move to the dead letter table, then the orders view is rebuilt
// from the surviving events. Re-running over the same data is a no-op.
func (c *Consolidator) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin consolidation: %w", err)
	}
	defer tx.Rollback(ctx)

	var res Result

	tag, err := tx.Exec(ctx, deadLetterSQL)
	if err != nil {
		return Result{}, fmt.Errorf("dead letter invalid rows: %w", err)
	}
	res.DeadLettered = tag.RowsAffected()

	if _, err := tx.Exec(ctx, purgeInvalidSQL); err != nil {
		return Result{}, fmt.Errorf("purge invalid rows: %w", err)
	}

	tag, err = tx.Exec(ctx, consolidateSQL)
	if err != nil {
		return Result{}, fmt.Errorf("consolidate orders: %w", err)
	}
	res.Consolidated = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit consolidation: %w", err)
	}

	res.Elapsed = time.Since(start)
	c.logger.Info("consolidation finished",
		slog.Int64("dead_lettered", res.DeadLettered),
		slog.Int64("consolidated", res.Consolidated),
		logging.Duration(res.Elapsed.Milliseconds()))
	return res, nil
}

// RunPeriodic runs consolidation on a fixed interval until the context
// is cancelled. A failing run is logged and does not stop the schedule.
func (c *Consolidator) RunPeriodic(ctx context.Context, every time.Duration) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			if _, err := c.Run(ctx); err != nil {
				c.logger.Error("scheduled consolidation failed", logging.Error(err))
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule consolidation: %w", err)
	}

	scheduler.Start()
	c.logger.Info("periodic consolidation started", slog.Duration("every", every))

	<-ctx.Done()
	return scheduler.Shutdown()
}
