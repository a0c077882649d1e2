package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelotduongvidainhat/ams/internal/infrastructure/database"
	"github.com/kelotduongvidainhat/ams/internal/ledger"
)

var (
	migrateStatus bool
	migrateDown   bool
)

// migrateCmd applies pending schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending migrations to the local database and, for the postgres
driver, to the ledger database.

Examples:
  amsctl migrate
  amsctl migrate --status
  amsctl migrate --down`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show applied and pending migrations without applying")
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back the most recent local migration")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := database.Open(database.Config{
		Path:        appConfig.Database.Path,
		WALMode:     appConfig.Database.WALMode,
		BusyTimeout: appConfig.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // CLI teardown

	out := cmd.OutOrStdout()
	if migrateStatus {
		applied, pending, err := db.GetMigrationStatus(ctx)
		if err != nil {
			return err
		}
		for _, m := range applied {
			fmt.Fprintf(out, "applied  %s  %s\n", m.ID, m.AppliedAt.Format(time.RFC3339))
		}
		for _, name := range pending {
			fmt.Fprintf(out, "pending  %s\n", name)
		}
		return nil
	}

	if migrateDown {
		if err := db.MigrateDown(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "database: rolled back 1 migration")
		return nil
	}

	n, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	fmt.Fprintf(out, "database: applied %d migrations\n", n)

	if appConfig.Ledger.Driver == ledger.DriverPostgres {
		store, n, err := ledger.OpenPostgres(ctx, appConfig.Ledger.DSN)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck // CLI teardown
		fmt.Fprintf(out, "ledger: applied %d migrations\n", n)
	}
	return nil
}
