package transfer

import "errors"

// Domain errors for the transfer package.
//
// Callers match them with errors.Is; the returned errors usually wrap one of
// these with the asset or identity involved:
//
//	if errors.Is(err, transfer.ErrAlreadyExists) {
//	    // a PENDING transfer already holds the asset
//	}
var (
	// ErrNotFound is returned for an unknown asset or when no PENDING
	// transfer exists for the asset.
	ErrNotFound = errors.New("transfer: not found")

	// ErrAlreadyExists is returned when initiating while a PENDING transfer exists.
	ErrAlreadyExists = errors.New("transfer: already exists")

	// ErrUnauthorized is returned when the caller may not act on the transfer.
	ErrUnauthorized = errors.New("transfer: unauthorized")

	// ErrInvalidOwner is returned when the new owner equals the current
	// owner, or when the ledger owner changed since initiation.
	ErrInvalidOwner = errors.New("transfer: invalid owner")

	// ErrLedgerCommit is returned when the ledger append fails or times out.
	// The transfer stays PENDING and the approval may be retried.
	ErrLedgerCommit = errors.New("transfer: ledger commit failed")

	// ErrAssetLocked is returned when an administrator has frozen the asset.
	ErrAssetLocked = errors.New("transfer: asset locked")

	// ErrLedgerUnavailable is returned when a ledger read fails or times out
	// before any state changed.
	ErrLedgerUnavailable = errors.New("transfer: ledger unavailable")

	// ErrInvalidRequest is returned for missing or malformed arguments.
	ErrInvalidRequest = errors.New("transfer: invalid request")
)
