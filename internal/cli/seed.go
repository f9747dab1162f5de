package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	natsclient "github.com/orderflow-systems/orderflow-pipeline/common/messaging/nats"
	"github.com/orderflow-systems/orderflow-pipeline/internal/seeder"
)

var (
	seedProfile string
	seedCount   int
	seedStdout  bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish synthetic order events",
	Long: `Generate synthetic order events and publish them to the broker.
Generated traffic includes a configurable share of defective events so
the full pipeline, dead letters included, can be exercised end to end.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedProfile, "profile", "", "YAML seed profile")
	seedCmd.Flags().IntVar(&seedCount, "count", 0, "override event count")
	seedCmd.Flags().BoolVar(&seedStdout, "stdout", false, "write events to stdout instead of publishing")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profile := seeder.DefaultProfile()
	if seedProfile != "" {
		var err error
		profile, err = seeder.LoadProfile(seedProfile)
		if err != nil {
			return err
		}
	}
	if seedCount > 0 {
		profile.Count = seedCount
	}

	var pub seeder.Publisher
	if seedStdout {
		pub = &seeder.WriterPublisher{W: os.Stdout}
	} else {
		js, err := newJetStream()
		if err != nil {
			return err
		}
		defer js.Close()

		if _, err := js.CreateOrUpdateStream(ctx, natsclient.OrdersStream); err != nil {
			return err
		}
		pub = &seeder.JetStreamPublisher{JS: js}
	}

	_, err := seeder.NewRunner(seeder.NewGenerator(profile), pub).Run(ctx, profile)
	return err
}
