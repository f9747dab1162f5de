package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/orderflow-systems/orderflow-pipeline/common/logging"
	natsclient "github.com/orderflow-systems/orderflow-pipeline/common/messaging/nats"
	"github.com/orderflow-systems/orderflow-pipeline/internal/aggregate"
	"github.com/orderflow-systems/orderflow-pipeline/internal/consumer"
	"github.com/orderflow-systems/orderflow-pipeline/internal/dlq"
	"github.com/orderflow-systems/orderflow-pipeline/internal/etl"
	"github.com/orderflow-systems/orderflow-pipeline/internal/metrics"
	"github.com/orderflow-systems/orderflow-pipeline/internal/sink"
	"github.com/orderflow-systems/orderflow-pipeline/internal/transform"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the streaming event pipeline",
	Long: `Consume raw order events from the broker, normalize and validate
them, persist them to the event store, and fold them into the
latest-state view. Rejected events go to the dead letter stream.`,
	RunE: runConsume,
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	js, err := newJetStream()
	if err != nil {
		return err
	}
	defer js.Close()

	pgStore, err := sink.NewPostgresStore(ctx, cfg.Postgres.ConnString())
	if err != nil {
		return fmt.Errorf("connect event store: %w", err)
	}
	defer pgStore.Close()

	var store sink.Store = pgStore
	if cfg.OpenSearch.Enabled {
		osStore, err := sink.NewOpenSearchStore(sink.OpenSearchConfig{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			Index:         cfg.OpenSearch.Index,
		})
		if err != nil {
			return fmt.Errorf("connect analytics index: %w", err)
		}
		store = sink.NewMultiStore(pgStore, osStore)
		logger.Info("analytics indexing enabled", slog.String("index", cfg.OpenSearch.Index))
	}

	var state aggregate.StateStore = aggregate.NewMemoryStore()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect state store: %w", err)
		}
		defer rdb.Close()
		state = aggregate.NewRedisStore(rdb)
		logger.Info("shared state store enabled", slog.String("addr", cfg.Redis.Addr))
	}

	router, err := dlq.NewJetStreamRouter(ctx, js)
	if err != nil {
		return fmt.Errorf("create dead letter router: %w", err)
	}

	writer := sink.NewWriter(store, sink.WithBackoffUnit(cfg.Consumer.BackoffUnit))
	pipeline := consumer.New(transform.New(), router, writer, aggregate.New(state))

	// Metrics endpoint
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", logging.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}()

	if cfg.Consumer.ConsolidateEvery > 0 {
		consolidator := etl.NewConsolidator(pgStore.Pool())
		go func() {
			if err := consolidator.RunPeriodic(ctx, cfg.Consumer.ConsolidateEvery); err != nil {
				logger.Error("periodic consolidation stopped", logging.Error(err))
			}
		}()
	}

	if err := pipeline.Run(ctx, js, cfg.Consumer.Name); err != nil {
		return err
	}

	stats := pipeline.Stats()
	logger.Info("pipeline summary",
		slog.Int64("received", stats.Received),
		slog.Int64("transformed", stats.Transformed),
		slog.Int64("rejected", stats.Rejected),
		slog.Int64("aggregated", stats.Aggregated))
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func newJetStream() (*natsclient.JetStreamClient, error) {
	js, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          cfg.NATS.Name,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	})
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	return js, nil
}
