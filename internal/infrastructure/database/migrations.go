package database

import (
	"context"
	"embed"
	"fmt"
	"time"

	migrate "github.com/rubenv/sql-migrate"
)

// migrationsTable records applied migrations in the local store.
const migrationsTable = "schema_migrations"

// MigrationsFS holds the embedded migration files. It is registered by the
// migrations package so the SQL ships inside the binary:
//
//	//go:embed *.sql
//	var migrationsFS embed.FS
//
//	func init() {
//	    database.MigrationsFS = migrationsFS
//	}
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS containing the files.
var MigrationsDir = "migrations"

// MigrationRecord is a row in the schema_migrations table.
type MigrationRecord struct {
	ID        string    `db:"id"`
	AppliedAt time.Time `db:"applied_at"`
}

func migrationSet() migrate.MigrationSet {
	return migrate.MigrationSet{TableName: migrationsTable}
}

func migrationSource() (migrate.MigrationSource, bool) {
	var empty embed.FS
	if MigrationsFS == empty {
		return nil, false
	}
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: MigrationsFS,
		Root:       MigrationsDir,
	}, true
}

// Migrate applies all pending migrations in version order.
//
// Each migration file carries "-- +migrate Up" and "-- +migrate Down"
// sections and runs in its own transaction, so a failure leaves earlier
// migrations committed and re-running Migrate continues from the failed one.
//
// Returns:
//   - int: Number of migrations applied
//   - error: If any migration fails
func (db *DB) Migrate(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	src, ok := migrationSource()
	if !ok {
		return 0, nil
	}

	n, err := migrationSet().Exec(db.DB.DB, driverName, src, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("applying migrations: %w", err)
	}
	return n, nil
}

// MigrateDown rolls back the most recent migration.
func (db *DB) MigrateDown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, ok := migrationSource()
	if !ok {
		return nil
	}

	if _, err := migrationSet().ExecMax(db.DB.DB, driverName, src, migrate.Down, 1); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	return nil
}

// GetMigrationStatus returns the applied migrations and the IDs of those
// still pending.
func (db *DB) GetMigrationStatus(ctx context.Context) (applied []MigrationRecord, pending []string, err error) {
	src, ok := migrationSource()
	if !ok {
		return nil, nil, nil
	}

	planned, _, err := migrationSet().PlanMigration(db.DB.DB, driverName, src, migrate.Up, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("planning migrations: %w", err)
	}
	for _, p := range planned {
		pending = append(pending, p.Id)
	}

	// PlanMigration creates the table, so it is safe to read now.
	if err := db.SelectContext(ctx, &applied,
		"SELECT id, applied_at FROM "+migrationsTable+" ORDER BY id",
	); err != nil {
		return nil, nil, fmt.Errorf("querying migrations: %w", err)
	}
	return applied, pending, nil
}
