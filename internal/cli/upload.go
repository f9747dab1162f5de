package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orderflow-systems/orderflow-pipeline/internal/conversion"
	"github.com/orderflow-systems/orderflow-pipeline/internal/sink"
)

var uploadDryRun bool

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Report completed orders as conversions",
	Long: `Query completed orders from the store and upload each as a
conversion. Orders with missing click ids or unsupported currencies
are defaulted; orders with negative amounts or unusable timestamps are
skipped. One failing order never stops the batch.`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "log payloads instead of uploading")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sink.NewPostgresStore(ctx, cfg.Postgres.ConnString())
	if err != nil {
		return fmt.Errorf("connect event store: %w", err)
	}
	defer store.Close()

	orders, err := store.CompletedOrders(ctx)
	if err != nil {
		return fmt.Errorf("query completed orders: %w", err)
	}

	var uploader conversion.Uploader
	if uploadDryRun || cfg.Conversion.DryRun {
		uploader = conversion.NewLogUploader()
	} else {
		uploader = conversion.NewHTTPUploader(cfg.Conversion.Endpoint, cfg.Conversion.Timeout)
	}

	sum := conversion.NewGate(uploader).Batch(ctx, orders)

	slog.Default().Info("upload complete",
		slog.Int("candidates", len(orders)),
		slog.Int("uploaded", sum.Uploaded),
		slog.Int("failed", sum.Failed),
		slog.Int("skipped", sum.Skipped),
		slog.Int("not_applicable", sum.NotApplicable))
	return nil
}
