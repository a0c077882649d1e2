package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kelotduongvidainhat/ams/internal/infrastructure/database"
)

// SQLStore implements Ledger over the ledger_assets and ledger_history
// tables. Queries are written with ? placeholders and rebound for the
// driver, so the same store serves SQLite and Postgres.
type SQLStore struct {
	db    *sqlx.DB
	owned bool
	now   func() time.Time
}

// NewSQLStore creates a ledger over an already-migrated database. The
// caller keeps ownership of db; Close is a no-op.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// GetOwner returns the current owner of assetID.
func (s *SQLStore) GetOwner(ctx context.Context, assetID string) (string, error) {
	var owner string
	err := s.db.GetContext(ctx, &owner, s.db.Rebind(`SELECT owner FROM ledger_assets WHERE id = ?`), assetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading owner of %s: %w", assetID, err)
	}
	return owner, nil
}

// GetAsset returns the ledger record for assetID.
func (s *SQLStore) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	var a Asset
	err := s.db.GetContext(ctx, &a, s.db.Rebind(
		`SELECT id, name, type, owner, locked, updated_at FROM ledger_assets WHERE id = ?`), assetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading asset %s: %w", assetID, err)
	}
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// AppendTransfer moves ownership with a compare-and-swap on the current
// owner and the lock flag, and appends the history entry in the same
// transaction.
func (s *SQLStore) AppendTransfer(ctx context.Context, rec Record) (*Receipt, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting ledger transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE ledger_assets SET owner = ?, updated_at = ? WHERE id = ? AND owner = ? AND NOT locked`),
		rec.ToOwner, now, rec.AssetID, rec.FromOwner,
	)
	if err != nil {
		return nil, fmt.Errorf("updating owner of %s: %w", rec.AssetID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // supported by both drivers
		var cur struct {
			Owner  string `db:"owner"`
			Locked bool   `db:"locked"`
		}
		err := tx.GetContext(ctx, &cur, tx.Rebind(`SELECT owner, locked FROM ledger_assets WHERE id = ?`), rec.AssetID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("reading owner of %s: %w", rec.AssetID, err)
		}
		if cur.Owner != rec.FromOwner {
			return nil, fmt.Errorf("%w: %s is held by %s", ErrOwnerMismatch, rec.AssetID, cur.Owner)
		}
		return nil, fmt.Errorf("%w: %s", ErrAssetLocked, rec.AssetID)
	}

	receipt := &Receipt{TxID: uuid.NewString(), RecordedAt: now}
	if _, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO ledger_history (tx_id, asset_id, from_owner, to_owner, transfer_id, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		receipt.TxID, rec.AssetID, rec.FromOwner, rec.ToOwner, rec.TransferID, now,
	); err != nil {
		return nil, fmt.Errorf("appending history for %s: %w", rec.AssetID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing ledger transaction: %w", err)
	}
	return receipt, nil
}

// History returns every ownership change for assetID, oldest first.
func (s *SQLStore) History(ctx context.Context, assetID string) ([]HistoryEntry, error) {
	if _, err := s.GetOwner(ctx, assetID); err != nil {
		return nil, err
	}

	entries := []HistoryEntry{}
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(
		`SELECT tx_id, asset_id, from_owner, to_owner, transfer_id, recorded_at
		 FROM ledger_history WHERE asset_id = ? ORDER BY seq`), assetID,
	); err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", assetID, err)
	}
	for i := range entries {
		entries[i].RecordedAt = entries[i].RecordedAt.UTC()
	}
	return entries, nil
}

// RegisterAsset inserts a new asset and its genesis history entry.
func (s *SQLStore) RegisterAsset(ctx context.Context, asset Asset) error {
	if asset.ID == "" || asset.Owner == "" {
		return errors.Join(ErrInvalidRecord, errors.New("asset id and owner are required"))
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting ledger transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	now := s.now().UTC()
	if _, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO ledger_assets (id, name, type, owner, updated_at) VALUES (?, ?, ?, ?, ?)`),
		asset.ID, asset.Name, asset.Type, asset.Owner, now,
	); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAssetExists
		}
		return fmt.Errorf("registering asset %s: %w", asset.ID, err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO ledger_history (tx_id, asset_id, from_owner, to_owner, transfer_id, recorded_at)
		 VALUES (?, ?, '', ?, '', ?)`),
		uuid.NewString(), asset.ID, asset.Owner, now,
	); err != nil {
		return fmt.Errorf("recording genesis of %s: %w", asset.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ledger transaction: %w", err)
	}
	return nil
}

// SetLocked sets the lock flag of assetID.
func (s *SQLStore) SetLocked(ctx context.Context, assetID string, locked bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE ledger_assets SET locked = ?, updated_at = ? WHERE id = ?`),
		locked, s.now().UTC(), assetID,
	)
	if err != nil {
		return fmt.Errorf("setting lock on %s: %w", assetID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // supported by both drivers
		return ErrNotFound
	}
	return nil
}

// HealthCheck pings the backing database.
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ledger health check failed: %w", err)
	}
	return nil
}

// Close releases the connection if the store opened it.
func (s *SQLStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
