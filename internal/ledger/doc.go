// Package ledger is the authoritative record of asset ownership.
//
// The transfer engine treats the ledger as an external collaborator: it
// reads the current owner of an asset and appends ownership changes, each
// acknowledged by a Receipt. Appends are compare-and-swap on the current
// owner, so a ledger that moved on since a transfer was initiated rejects
// the commit with ErrOwnerMismatch instead of overwriting it.
//
// Two backends share one SQL implementation:
//   - sqlite: tables in the service's local database (default)
//   - postgres: an external database reached with lib/pq, migrated with sql-migrate
package ledger
