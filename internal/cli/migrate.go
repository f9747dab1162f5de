package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsPath, "path", "db/migrations", "migrations directory")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	m, err := migrate.New("file://"+migrationsPath, cfg.Postgres.ConnString())
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Default().Info("database already up to date")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	slog.Default().Info("database migrations completed")
	return nil
}
