// AMS - Asset Management System
//
// This is the main entry point for the asset transfer service. It exposes
// a REST and WebSocket API over a multi-party approval workflow and commits
// executed transfers to the ownership ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/kelotduongvidainhat/ams/migrations"

	"github.com/kelotduongvidainhat/ams/internal/api"
	"github.com/kelotduongvidainhat/ams/internal/audit"
	"github.com/kelotduongvidainhat/ams/internal/auth"
	"github.com/kelotduongvidainhat/ams/internal/events"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/config"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/database"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/influxdb"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/logging"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/mqtt"
	"github.com/kelotduongvidainhat/ams/internal/ledger"
	"github.com/kelotduongvidainhat/ams/internal/provenance"
	"github.com/kelotduongvidainhat/ams/internal/signing"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until ctx is cancelled or a component fails.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting AMS",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	// Local database: transfers, approvals, users, audit log
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	applied, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "migrations_applied", applied)

	// Ownership ledger
	ledgerStore, err := ledger.Open(ctx, cfg.Ledger.Driver, cfg.Ledger.DSN, db.DB)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer ledgerStore.Close() //nolint:errcheck // no-op for the sqlite driver
	log.Info("ledger ready", "driver", cfg.Ledger.Driver)

	users := auth.NewUserRepository(db.DB)
	if err := seed(ctx, cfg, users, ledgerStore, log); err != nil {
		return err
	}

	signer, err := signing.New(cfg.SigningSecret())
	if err != nil {
		return fmt.Errorf("creating approval signer: %w", err)
	}

	quorum, ok := transfer.ParseQuorum(cfg.Engine.Quorum)
	if !ok {
		return fmt.Errorf("unknown quorum policy %q", cfg.Engine.Quorum)
	}

	checks := map[string]api.HealthChecker{
		"database": db,
		"ledger":   ledgerStore,
	}

	broadcaster := events.NewBroadcaster(cfg.Engine.EventQueueSize, log.Component("events"))

	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditWriter := audit.NewWriter(auditRepo, cfg.Engine.EventQueueSize, log.Component("audit"))
	broadcaster.AddSink(auditWriter.Sink())

	// Optional MQTT fan-out
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		broadcaster.AddSink(events.NewMQTTSink(mqttClient))
		checks["mqtt"] = mqttClient
		log.Info("MQTT event publishing enabled",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"prefix", cfg.MQTT.TopicPrefix,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Optional InfluxDB metrics
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		broadcaster.AddSink(events.NewMetricsSink(influxClient))
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Optional provenance graph
	var lineage api.LineageReader
	if cfg.Graph.Enabled {
		graphClient, connErr := provenance.NewNeo4jClient(ctx, provenance.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if connErr != nil {
			return fmt.Errorf("connecting to provenance graph: %w", connErr)
		}
		store := provenance.NewStore(graphClient)
		defer func() {
			log.Info("closing provenance graph")
			if closeErr := store.Close(context.Background()); closeErr != nil {
				log.Error("error closing provenance graph", "error", closeErr)
			}
		}()
		if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
			return fmt.Errorf("preparing provenance graph: %w", schemaErr)
		}

		broadcaster.AddSink(store.Sink())
		checks["graph"] = store
		lineage = store
		log.Info("provenance graph connected", "uri", cfg.Graph.URI)
	} else {
		log.Info("provenance graph disabled")
	}

	// Transfer engine
	repo := transfer.NewSQLiteRepository(db)
	engine := transfer.NewEngine(repo, ledgerStore, signer, broadcaster, transfer.Config{
		CommitTimeout:         cfg.GetCommitTimeout(),
		TransferTTL:           cfg.GetTransferTTL(),
		RequireOwnerInitiator: cfg.Engine.RequireOwnerInitiator,
		Quorum:                quorum,
	}, log.Component("transfer"))
	sweeper := transfer.NewSweeper(engine, cfg.GetSweepInterval(), log.Component("sweeper"))

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log.Component("api"),
		Transfers: engine,
		Queries:   transfer.NewQueryService(repo),
		Ledger:    ledgerStore,
		Users:     users,
		AuditRepo: auditRepo,
		Audit:     auditWriter,
		Lineage:   lineage,
		Events:    broadcaster,
		Checks:    checks,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	broadcaster.AddSink(server.Hub())

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return broadcaster.Run(gctx) })
	g.Go(func() error { return auditWriter.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return err
		}
		log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())
		<-gctx.Done()
		return server.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	published, dropped := broadcaster.Stats()
	log.Info("AMS stopped", "events_published", published, "events_dropped", dropped)
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AMS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AMS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// seed creates the configured accounts on first boot and registers the
// configured assets that are not on the ledger yet.
func seed(ctx context.Context, cfg *config.Config, users auth.UserRepository, l ledger.Ledger, log *logging.Logger) error {
	accounts := make([]auth.SeedAccount, 0, len(cfg.Seed.Users))
	for _, u := range cfg.Seed.Users {
		accounts = append(accounts, auth.SeedAccount{
			Username: u.Username,
			Password: u.Password,
			Role:     auth.Role(u.Role),
		})
	}
	created, generated, err := auth.SeedUsers(ctx, users, accounts, log)
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}
	if created > 0 {
		log.Info("seeded user accounts", "count", created)
	}
	if generated != "" {
		log.Warn("generated admin account, change its password", "username", "admin", "password", generated)
	}

	for _, a := range cfg.Seed.Assets {
		err := l.RegisterAsset(ctx, ledger.Asset{ID: a.ID, Name: a.Name, Type: a.Type, Owner: a.Owner})
		switch {
		case errors.Is(err, ledger.ErrAssetExists):
		case err != nil:
			return fmt.Errorf("seeding asset %s: %w", a.ID, err)
		default:
			log.Info("registered seed asset", "asset_id", a.ID, "owner", a.Owner)
		}
	}
	return nil
}

// healthCheck verifies every configured dependency answers.
//
// Returns:
//   - error: First health check failure in name order, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := checks[name].HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
