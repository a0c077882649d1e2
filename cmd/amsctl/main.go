// amsctl is the operator CLI for the asset transfer service: schema
// migrations, seeding, ledger inspection, transfer listings and a live view
// of the MQTT event stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/kelotduongvidainhat/ams/migrations"

	"github.com/kelotduongvidainhat/ams/internal/infrastructure/config"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/database"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/logging"
	"github.com/kelotduongvidainhat/ams/internal/ledger"
	"github.com/kelotduongvidainhat/ams/internal/signing"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

var (
	configPath string
	verbose    bool

	appConfig *config.Config
	appLog    *logging.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:               "amsctl",
	Short:             "Operate the asset transfer service",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	defaultPath := os.Getenv("AMS_CONFIG")
	if defaultPath == "" {
		defaultPath = "configs/config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Write service logs alongside command output")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(assetsCmd)
	rootCmd.AddCommand(transfersCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg
	// Logs would interleave with table output, so they are opt-in.
	appLog = logging.Nop()
	if verbose {
		appLog = logging.New(cfg.Logging, "amsctl")
	}
	return nil
}

// stores is the local database plus the configured ledger.
type stores struct {
	db     *database.DB
	ledger *ledger.SQLStore
}

func (s *stores) Close() {
	s.ledger.Close() //nolint:errcheck // CLI teardown
	s.db.Close()     //nolint:errcheck // CLI teardown
}

// engine builds a transfer engine over the stores. Events are not published
// from the CLI.
func (s *stores) engine() (*transfer.Engine, error) {
	signer, err := signing.New(appConfig.SigningSecret())
	if err != nil {
		return nil, err
	}
	return transfer.NewEngine(transfer.NewSQLiteRepository(s.db), s.ledger, signer, nil, transfer.Config{
		CommitTimeout: appConfig.GetCommitTimeout(),
		TransferTTL:   appConfig.GetTransferTTL(),
	}, appLog), nil
}

// openStores opens and migrates the local database and the ledger.
func openStores(ctx context.Context) (*stores, error) {
	db, err := database.Open(database.Config{
		Path:        appConfig.Database.Path,
		WALMode:     appConfig.Database.WALMode,
		BusyTimeout: appConfig.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	l, err := ledger.Open(ctx, appConfig.Ledger.Driver, appConfig.Ledger.DSN, db.DB)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return &stores{db: db, ledger: l}, nil
}
