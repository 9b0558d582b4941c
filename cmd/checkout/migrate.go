package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jafarshop/checkoutapi/internal/repository/postgres"
)

var migrateDownSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|version]",
	Short: "Manage the database schema",
	Long: `Manage the database schema.

Examples:
  checkout migrate up
  checkout migrate down --steps 1
  checkout migrate version`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE:      runMigrate,
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back with down")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	switch args[0] {
	case "up":
		if err := postgres.MigrateUp(db); err != nil {
			return err
		}
	case "down":
		if migrateDownSteps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}
		if err := postgres.MigrateDown(db, migrateDownSteps); err != nil {
			return err
		}
	}

	version, dirty, err := postgres.MigrationVersion(db)
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
	return nil
}
