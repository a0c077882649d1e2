// Package database provides the local SQLite store for the asset transfer service.
//
// This package manages:
//   - Connection setup with WAL mode, busy timeout and foreign keys
//   - Embedded schema migrations applied with sql-migrate
//   - Transaction helpers built on sqlx
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive: new columns must be nullable or carry a default,
// and every file has both an Up and a Down section.
package database
