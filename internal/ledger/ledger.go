package ledger

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Ledger implementations.
var (
	ErrNotFound      = errors.New("ledger: asset not found")
	ErrAssetExists   = errors.New("ledger: asset already registered")
	ErrOwnerMismatch = errors.New("ledger: owner changed since transfer was initiated")
	ErrInvalidRecord = errors.New("ledger: invalid transfer record")
	ErrAssetLocked   = errors.New("ledger: asset is locked")
)

// Asset is an ownership record held by the ledger.
type Asset struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Type      string    `json:"type,omitempty" db:"type"`
	Owner     string    `json:"owner" db:"owner"`
	Locked    bool      `json:"locked" db:"locked"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Record is an ownership change to append. FromOwner must match the owner
// currently held by the ledger or the append fails with ErrOwnerMismatch.
type Record struct {
	AssetID    string
	FromOwner  string
	ToOwner    string
	TransferID string
}

// Receipt acknowledges a committed Record.
type Receipt struct {
	TxID       string    `json:"tx_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// HistoryEntry is one row of an asset's append-only ownership history.
// The first entry of every asset is its registration, with an empty FromOwner.
type HistoryEntry struct {
	TxID       string    `json:"tx_id" db:"tx_id"`
	AssetID    string    `json:"asset_id" db:"asset_id"`
	FromOwner  string    `json:"from_owner,omitempty" db:"from_owner"`
	ToOwner    string    `json:"to_owner" db:"to_owner"`
	TransferID string    `json:"transfer_id,omitempty" db:"transfer_id"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// Ledger is the authoritative asset ownership store.
//
// The transfer engine reads owners and appends records. The only in-place
// update is the administrative lock, which AppendTransfer honours.
type Ledger interface {
	// GetOwner returns the current owner of assetID or ErrNotFound.
	GetOwner(ctx context.Context, assetID string) (string, error)

	// GetAsset returns the full asset record or ErrNotFound.
	GetAsset(ctx context.Context, assetID string) (*Asset, error)

	// AppendTransfer atomically moves ownership and appends a history entry.
	// It fails with ErrAssetLocked while the asset is locked.
	AppendTransfer(ctx context.Context, rec Record) (*Receipt, error)

	// History returns every ownership change for assetID, oldest first.
	History(ctx context.Context, assetID string) ([]HistoryEntry, error)

	// RegisterAsset adds a new asset with its genesis history entry.
	RegisterAsset(ctx context.Context, asset Asset) error

	// SetLocked freezes or releases an asset. Setting the current value
	// again is not an error.
	SetLocked(ctx context.Context, assetID string, locked bool) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

// Validate checks that a Record describes a real ownership change.
func (r Record) Validate() error {
	switch {
	case r.AssetID == "":
		return errors.Join(ErrInvalidRecord, errors.New("asset_id is required"))
	case r.ToOwner == "":
		return errors.Join(ErrInvalidRecord, errors.New("to_owner is required"))
	case r.FromOwner == r.ToOwner:
		return errors.Join(ErrInvalidRecord, errors.New("to_owner must differ from from_owner"))
	}
	return nil
}
