// cmd/admin/migrate.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codesentry/internal/config"
	"codesentry/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	version, err := database.Migrate(cfg.MigrationsPath, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
	return nil
}
