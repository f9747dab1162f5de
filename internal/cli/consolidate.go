package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orderflow-systems/orderflow-pipeline/internal/etl"
	"github.com/orderflow-systems/orderflow-pipeline/internal/sink"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Rebuild the latest-per-order view from the event store",
	Long: `Run one bulk consolidation pass: rows that fail validation move to
the dead letter table, then the orders view is rebuilt as the latest
event per order. Safe to re-run; already consolidated data is a no-op.`,
	RunE: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sink.NewPostgresStore(ctx, cfg.Postgres.ConnString())
	if err != nil {
		return fmt.Errorf("connect event store: %w", err)
	}
	defer store.Close()

	res, err := etl.NewConsolidator(store.Pool()).Run(ctx)
	if err != nil {
		return err
	}

	slog.Default().Info("consolidation complete",
		slog.Int64("dead_lettered", res.DeadLettered),
		slog.Int64("consolidated", res.Consolidated),
		slog.Duration("elapsed", res.Elapsed))
	return nil
}
