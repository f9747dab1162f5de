// Package cli implements the orderflow command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orderflow-systems/orderflow-pipeline/common/logging"
	"github.com/orderflow-systems/orderflow-pipeline/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "orderflow",
	Short: "Order event pipeline",
	Long: `orderflow normalizes raw order lifecycle events, maintains the
latest state per order, and reports completed orders as conversions.

Run "orderflow consume" for the streaming pipeline, "orderflow
consolidate" for the bulk latest-per-order rebuild, and "orderflow
upload" to report completed orders.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger.With(logging.Service("orderflow")))
}
