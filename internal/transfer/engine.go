package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kelotduongvidainhat/ams/internal/ledger"
)

// Engine defaults.
const (
	DefaultCommitTimeout = 10 * time.Second
	DefaultTransferTTL   = 24 * time.Hour

	// DefaultRejectReason is recorded when a rejection carries no reason.
	DefaultRejectReason = "No reason provided"

	approvalComment = "Approved transfer"
)

// Logger defines the logging interface used by the Engine and Sweeper.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher receives lifecycle events after the transition is committed.
// Publish must not block.
type Publisher interface {
	Publish(eventType EventType, t *Transfer)
}

// Signer produces the approval signature of identity over (assetID, newOwner).
type Signer interface {
	Sign(identity, assetID, newOwner string) (string, error)
}

// Config tunes the Engine.
type Config struct {
	// CommitTimeout bounds every ledger call made while an asset lock is
	// held: the read-verify-append sequence and the reads before it.
	CommitTimeout time.Duration

	// TransferTTL is how long a transfer may stay PENDING.
	TransferTTL time.Duration

	// RequireOwnerInitiator restricts Initiate to the current owner
	// (admins may always initiate).
	RequireOwnerInitiator bool

	// Quorum decides when approvals allow execution. Defaults to NewOwnerQuorum.
	Quorum QuorumPolicy
}

// Engine is the transfer state machine.
//
// All mutations of one asset are serialised by a per-asset lock; different
// assets proceed in parallel. Events are published after the lock is
// released and only for transitions that were persisted.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	repo      Repository
	ledger    ledger.Ledger
	signer    Signer
	publisher Publisher
	locks     *KeyedMutex
	cfg       Config
	logger    Logger
	now       func() time.Time
}

// NewEngine creates a transfer engine.
//
// Parameters:
//   - repo: Transfer persistence
//   - l: Authoritative ownership ledger
//   - signer: Approval signer
//   - pub: Event publisher (may be nil)
//   - cfg: Timeouts and policy; zero values take the defaults
//   - logger: Logger instance (may be nil)
func NewEngine(repo Repository, l ledger.Ledger, signer Signer, pub Publisher, cfg Config, logger Logger) *Engine {
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = DefaultCommitTimeout
	}
	if cfg.TransferTTL <= 0 {
		cfg.TransferTTL = DefaultTransferTTL
	}
	if cfg.Quorum == nil {
		cfg.Quorum = NewOwnerQuorum
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		repo:      repo,
		ledger:    l,
		signer:    signer,
		publisher: pub,
		locks:     NewKeyedMutex(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// emitted is a committed transition waiting to be published.
type emitted struct {
	typ EventType
	t   *Transfer
}

// withAssetLock runs fn while holding the asset lock, then publishes the
// events fn committed. Events are published even when fn fails, since a
// failing call may still have committed a transition (expiry).
func (e *Engine) withAssetLock(ctx context.Context, assetID string, fn func() ([]emitted, error)) error {
	unlock, err := e.locks.Lock(ctx, assetID)
	if err != nil {
		return fmt.Errorf("waiting for asset %s: %w", assetID, err)
	}
	events, err := fn()
	unlock()

	if e.publisher != nil {
		for _, ev := range events {
			e.publisher.Publish(ev.typ, ev.t.Clone())
		}
	}
	return err
}

// Initiate creates a PENDING transfer of assetID to newOwner.
//
// Returns:
//   - *Transfer: The new PENDING transfer with no approvals
//   - error: nil on success, or:
//   - ErrNotFound if the asset is not on the ledger
//   - ErrInvalidOwner if newOwner already owns the asset
//   - ErrUnauthorized if the owner-initiator policy rejects the initiator
//   - ErrAssetLocked if an administrator locked the asset
//   - ErrAlreadyExists if a live PENDING transfer exists for the asset
//   - ErrLedgerUnavailable if the ledger read failed or timed out
func (e *Engine) Initiate(ctx context.Context, assetID, newOwner string, initiator Actor) (*Transfer, error) {
	if assetID == "" || newOwner == "" || initiator.ID == "" {
		return nil, fmt.Errorf("%w: asset_id, new_owner and initiator are required", ErrInvalidRequest)
	}

	var created *Transfer
	err := e.withAssetLock(ctx, assetID, func() ([]emitted, error) {
		var events []emitted

		asset, err := e.readAsset(ctx, assetID)
		if err != nil {
			return nil, err
		}
		if asset.Locked {
			return nil, fmt.Errorf("%w: %s is locked and cannot be transferred", ErrAssetLocked, assetID)
		}
		if newOwner == asset.Owner {
			return nil, fmt.Errorf("%w: %s already owns %s", ErrInvalidOwner, newOwner, assetID)
		}
		if e.cfg.RequireOwnerInitiator && initiator.ID != asset.Owner && !initiator.Admin {
			return nil, fmt.Errorf("%w: only the owner of %s may initiate a transfer", ErrUnauthorized, assetID)
		}

		existing, err := e.repo.GetPending(ctx, assetID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, err
		case existing.IsExpired(e.now()):
			ev, err := e.expireLocked(ctx, existing)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		default:
			return nil, fmt.Errorf("%w for asset %s", ErrAlreadyExists, assetID)
		}

		now := e.now().UTC()
		t := &Transfer{
			ID:           uuid.NewString(),
			AssetID:      assetID,
			AssetName:    asset.Name,
			Initiator:    initiator.ID,
			CurrentOwner: asset.Owner,
			NewOwner:     newOwner,
			Status:       StatusPending,
			Approvals:    []Approval{},
			CreatedAt:    now,
			ExpiresAt:    now.Add(e.cfg.TransferTTL),
		}
		if err := e.repo.Create(ctx, t); err != nil {
			return events, err
		}

		e.logger.Info("transfer initiated",
			"transfer_id", t.ID, "asset_id", assetID, "from", t.CurrentOwner, "to", newOwner, "initiator", initiator.ID)
		created = t
		return append(events, emitted{EventInitiated, t}), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Approve records signer's approval of the PENDING transfer of assetID and
// executes it through the ledger once the quorum is met.
//
// A repeated approval by the same signer returns the transfer unchanged.
//
// Returns:
//   - *Transfer: The transfer after the approval (EXECUTED if the quorum was met)
//   - error: nil on success, or:
//   - ErrNotFound if no live PENDING transfer exists
//   - ErrUnauthorized if signer is neither the current nor the new owner
//   - ErrInvalidOwner if the ledger owner changed since initiation
//   - ErrAssetLocked if an administrator locked the asset (still PENDING)
//   - ErrLedgerCommit if the ledger append failed or timed out (still PENDING)
func (e *Engine) Approve(ctx context.Context, assetID, signer string) (*Transfer, error) {
	if assetID == "" || signer == "" {
		return nil, fmt.Errorf("%w: asset_id and signer are required", ErrInvalidRequest)
	}

	var result *Transfer
	err := e.withAssetLock(ctx, assetID, func() ([]emitted, error) {
		t, events, err := e.livePending(ctx, assetID)
		if err != nil {
			if len(events) == 0 && errors.Is(err, ErrNotFound) {
				// Repeating the approval that executed the transfer is a no-op.
				if prev, ok := e.executedWithApproval(ctx, assetID, signer); ok {
					result = prev
					return nil, nil
				}
			}
			return events, err
		}

		role, ok := t.RoleOf(signer)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a party to the transfer of %s", ErrUnauthorized, signer, assetID)
		}

		set := NewApprovalSet(t.Approvals)
		if set.Has(signer) {
			result = t
			return nil, nil
		}

		sig, err := e.signer.Sign(signer, assetID, t.NewOwner)
		if err != nil {
			return nil, fmt.Errorf("signing approval: %w", err)
		}
		approval := Approval{
			Signer:    signer,
			Role:      role,
			Signature: sig,
			Comment:   approvalComment,
			Timestamp: e.now().UTC(),
		}
		set.Add(approval)

		if !e.cfg.Quorum(set) {
			if _, err := e.repo.SaveApproval(ctx, t.ID, approval, nil); err != nil {
				return nil, err
			}
			t.Approvals = set.List()
			result = t
			e.logger.Info("transfer approved",
				"transfer_id", t.ID, "asset_id", assetID, "signer", signer, "approvals", set.Len())
			return []emitted{{EventApproved, t}}, nil
		}

		exec, err := e.commit(ctx, t)
		if err != nil {
			return nil, err
		}

		// The ledger has moved; finish locally even if the caller gave up.
		if _, err := e.repo.SaveApproval(context.WithoutCancel(ctx), t.ID, approval, exec); err != nil {
			e.logger.Error("ledger committed but local state not updated",
				"transfer_id", t.ID, "asset_id", assetID, "ledger_tx_id", exec.LedgerTxID, "error", err)
			return nil, err
		}

		t.Approvals = set.List()
		t.Status = StatusExecuted
		executedAt := exec.ExecutedAt
		t.ExecutedAt = &executedAt
		t.LedgerTxID = exec.LedgerTxID
		result = t

		e.logger.Info("transfer executed",
			"transfer_id", t.ID, "asset_id", assetID, "new_owner", t.NewOwner, "ledger_tx_id", exec.LedgerTxID)
		return []emitted{{EventExecuted, t}}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject moves the PENDING transfer of assetID to REJECTED. Either party
// or an admin may reject; an empty reason is replaced by DefaultRejectReason.
func (e *Engine) Reject(ctx context.Context, assetID string, actor Actor, reason string) (*Transfer, error) {
	if assetID == "" || actor.ID == "" {
		return nil, fmt.Errorf("%w: asset_id and actor are required", ErrInvalidRequest)
	}
	if reason == "" {
		reason = DefaultRejectReason
	}

	var result *Transfer
	err := e.withAssetLock(ctx, assetID, func() ([]emitted, error) {
		t, events, err := e.livePending(ctx, assetID)
		if err != nil {
			return events, err
		}
		if !t.IsParty(actor.ID) && !actor.Admin {
			return nil, fmt.Errorf("%w: %s is not a party to the transfer of %s", ErrUnauthorized, actor.ID, assetID)
		}

		if err := e.repo.MarkRejected(ctx, t.ID, actor.ID, reason); err != nil {
			return nil, err
		}
		t.Status = StatusRejected
		t.RejectedBy = actor.ID
		t.RejectionReason = reason
		result = t

		e.logger.Info("transfer rejected", "transfer_id", t.ID, "asset_id", assetID, "by", actor.ID)
		return []emitted{{EventRejected, t}}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetAssetLocked freezes or releases assetID on the ledger. Only admins may
// change the lock. A locked asset cannot be initiated or executed; a
// PENDING transfer survives the lock and may execute once it is lifted.
//
// Returns:
//   - *ledger.Asset: The asset after the change
//   - error: nil on success, or:
//   - ErrUnauthorized if actor is not an admin
//   - ErrNotFound if the asset is not on the ledger
//   - ErrLedgerUnavailable if the ledger write failed or timed out
func (e *Engine) SetAssetLocked(ctx context.Context, assetID string, actor Actor, locked bool) (*ledger.Asset, error) {
	if assetID == "" || actor.ID == "" {
		return nil, fmt.Errorf("%w: asset_id and actor are required", ErrInvalidRequest)
	}
	if !actor.Admin {
		return nil, fmt.Errorf("%w: only an admin may lock or unlock %s", ErrUnauthorized, assetID)
	}

	var result *ledger.Asset
	err := e.withAssetLock(ctx, assetID, func() ([]emitted, error) {
		lockCtx, cancel := context.WithTimeout(ctx, e.cfg.CommitTimeout)
		defer cancel()

		if err := e.ledger.SetLocked(lockCtx, assetID, locked); err != nil {
			return nil, e.ledgerReadError(assetID, err)
		}
		asset, err := e.ledger.GetAsset(lockCtx, assetID)
		if err != nil {
			return nil, e.ledgerReadError(assetID, err)
		}
		result = asset

		e.logger.Info("asset lock changed", "asset_id", assetID, "locked", locked, "by", actor.ID)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExpireStale moves every PENDING transfer past its deadline to EXPIRED and
// returns how many were expired.
func (e *Engine) ExpireStale(ctx context.Context) (int, error) {
	stale, err := e.repo.ListExpiredPending(ctx, e.now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		candidate := stale[i]
		err := e.withAssetLock(ctx, candidate.AssetID, func() ([]emitted, error) {
			// Re-read under the lock: the transfer may have moved on.
			t, err := e.repo.GetPending(ctx, candidate.AssetID)
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if t.ID != candidate.ID || !t.IsExpired(e.now()) {
				return nil, nil
			}
			ev, err := e.expireLocked(ctx, t)
			if err != nil {
				return nil, err
			}
			expired++
			return []emitted{ev}, nil
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}

// livePending loads the PENDING transfer for assetID, expiring it first if
// its deadline has passed. Must be called with the asset lock held.
func (e *Engine) livePending(ctx context.Context, assetID string) (*Transfer, []emitted, error) {
	t, err := e.repo.GetPending(ctx, assetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: no pending transfer for asset %s", ErrNotFound, assetID)
		}
		return nil, nil, err
	}
	if t.IsExpired(e.now()) {
		ev, err := e.expireLocked(ctx, t)
		if err != nil {
			return nil, nil, err
		}
		return nil, []emitted{ev}, fmt.Errorf("%w: transfer for asset %s expired at %s",
			ErrNotFound, assetID, t.ExpiresAt.Format(time.RFC3339))
	}
	return t, nil, nil
}

func (e *Engine) executedWithApproval(ctx context.Context, assetID, signer string) (*Transfer, bool) {
	latest, err := e.repo.Latest(ctx, assetID)
	if err != nil || latest.Status != StatusExecuted {
		return nil, false
	}
	if !NewApprovalSet(latest.Approvals).Has(signer) {
		return nil, false
	}
	return latest, true
}

func (e *Engine) expireLocked(ctx context.Context, t *Transfer) (emitted, error) {
	if err := e.repo.MarkExpired(ctx, t.ID); err != nil {
		return emitted{}, err
	}
	t.Status = StatusExpired
	e.logger.Info("transfer expired", "transfer_id", t.ID, "asset_id", t.AssetID)
	return emitted{EventExpired, t}, nil
}

// commit verifies the ledger owner and appends the ownership change, all
// under the commit timeout.
func (e *Engine) commit(ctx context.Context, t *Transfer) (*Execution, error) {
	commitCtx, cancel := context.WithTimeout(ctx, e.cfg.CommitTimeout)
	defer cancel()

	asset, err := e.ledger.GetAsset(commitCtx, t.AssetID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("%w: asset %s is no longer on the ledger", ErrNotFound, t.AssetID)
		}
		return nil, e.commitError(t.AssetID, err)
	}

	if owner := asset.Owner; owner != t.CurrentOwner {
		// A previous attempt may have reached the ledger without being
		// recorded locally; adopt its receipt instead of failing.
		if exec, ok := e.findCommitted(commitCtx, t); ok {
			e.logger.Warn("reconciled transfer already on the ledger",
				"transfer_id", t.ID, "asset_id", t.AssetID, "ledger_tx_id", exec.LedgerTxID)
			return exec, nil
		}
		return nil, fmt.Errorf("%w: %s is now held by %s, not %s", ErrInvalidOwner, t.AssetID, owner, t.CurrentOwner)
	}
	if asset.Locked {
		return nil, fmt.Errorf("%w: %s is locked and cannot be transferred", ErrAssetLocked, t.AssetID)
	}

	receipt, err := e.ledger.AppendTransfer(commitCtx, ledger.Record{
		AssetID:    t.AssetID,
		FromOwner:  t.CurrentOwner,
		ToOwner:    t.NewOwner,
		TransferID: t.ID,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrOwnerMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOwner, err)
		}
		if errors.Is(err, ledger.ErrAssetLocked) {
			return nil, fmt.Errorf("%w: %w", ErrAssetLocked, err)
		}
		return nil, e.commitError(t.AssetID, err)
	}

	return &Execution{ExecutedAt: receipt.RecordedAt.UTC(), LedgerTxID: receipt.TxID}, nil
}

func (e *Engine) findCommitted(ctx context.Context, t *Transfer) (*Execution, bool) {
	history, err := e.ledger.History(ctx, t.AssetID)
	if err != nil || len(history) == 0 {
		return nil, false
	}
	last := history[len(history)-1]
	if last.TransferID != t.ID || last.ToOwner != t.NewOwner {
		return nil, false
	}
	return &Execution{ExecutedAt: last.RecordedAt.UTC(), LedgerTxID: last.TxID}, true
}

func (e *Engine) commitError(assetID string, err error) error {
	e.logger.Error("ledger commit failed", "asset_id", assetID, "error", err)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out after %s", ErrLedgerCommit, e.cfg.CommitTimeout)
	}
	return fmt.Errorf("%w: %w", ErrLedgerCommit, err)
}

// readAsset reads assetID from the ledger under the commit timeout, so a
// stalled ledger cannot hold the asset lock indefinitely.
func (e *Engine) readAsset(ctx context.Context, assetID string) (*ledger.Asset, error) {
	readCtx, cancel := context.WithTimeout(ctx, e.cfg.CommitTimeout)
	defer cancel()

	asset, err := e.ledger.GetAsset(readCtx, assetID)
	if err != nil {
		return nil, e.ledgerReadError(assetID, err)
	}
	return asset, nil
}

func (e *Engine) ledgerReadError(assetID string, err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fmt.Errorf("%w: asset %s", ErrNotFound, assetID)
	case errors.Is(err, context.DeadlineExceeded):
		e.logger.Error("ledger read timed out", "asset_id", assetID, "timeout", e.cfg.CommitTimeout)
		return fmt.Errorf("%w: reading asset %s timed out after %s", ErrLedgerUnavailable, assetID, e.cfg.CommitTimeout)
	default:
		e.logger.Error("ledger read failed", "asset_id", assetID, "error", err)
		return fmt.Errorf("%w: reading asset %s: %w", ErrLedgerUnavailable, assetID, err)
	}
}
