package ledger

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Supported ledger drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open selects the ledger backend by driver name. The sqlite driver reuses
// the local database; postgres dials dsn and migrates the ledger schema.
func Open(ctx context.Context, driver, dsn string, local *sqlx.DB) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLStore(local), nil
	case DriverPostgres:
		store, _, err := OpenPostgres(ctx, dsn)
		return store, err
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}
}
