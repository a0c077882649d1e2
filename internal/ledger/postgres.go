package ledger

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Postgres driver
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// postgresMigrationsTable keeps ledger migrations apart from any other
// schema sharing the database.
const postgresMigrationsTable = "ledger_migrations"

const (
	pgMaxOpenConns    = 10
	pgConnMaxLifetime = 30 * time.Minute
)

// OpenPostgres connects to an external Postgres ledger and applies its
// schema migrations.
//
// Parameters:
//   - ctx: Bounds the connection attempt
//   - dsn: lib/pq connection string
//
// Returns:
//   - *SQLStore: Ledger owning the connection (Close releases it)
//   - int: Number of migrations applied
//   - error: If the connection or a migration fails
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, int, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("connecting to postgres ledger: %w", err)
	}
	db.SetMaxOpenConns(pgMaxOpenConns)
	db.SetConnMaxLifetime(pgConnMaxLifetime)

	set := migrate.MigrationSet{TableName: postgresMigrationsTable}
	src := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: postgresMigrations,
		Root:       "migrations/postgres",
	}
	n, err := set.Exec(db.DB, "postgres", src, migrate.Up)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, 0, fmt.Errorf("migrating postgres ledger: %w", err)
	}

	store := NewSQLStore(db)
	store.owned = true
	return store, n, nil
}
