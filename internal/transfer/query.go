package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PendingView is a PENDING transfer as seen by one of its parties.
type PendingView struct {
	Transfer
	ApprovalCount int  `json:"approval_count"`
	IsRecipient   bool `json:"is_recipient"`
	HasSigned     bool `json:"has_signed"`
}

// QueryService is the read side over transfers.
//
// It reads the same tables the Engine commits to, with no cache in between,
// so a transfer the Engine reported as EXECUTED is EXECUTED in the next
// query. Status, approvals and the ledger receipt are written in one SQL
// transaction, so a read never observes a partial execution.
type QueryService struct {
	repo Repository
	now  func() time.Time
}

// NewQueryService creates a read service over repo.
func NewQueryService(repo Repository) *QueryService {
	return &QueryService{repo: repo, now: time.Now}
}

// ListTransfers returns transfers matching f, newest first. Approvals are
// always included and never nil.
func (q *QueryService) ListTransfers(ctx context.Context, f Filter) ([]Transfer, error) {
	transfers, err := q.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	if transfers == nil {
		transfers = []Transfer{}
	}
	return transfers, nil
}

// GetTransfer returns the PENDING transfer for assetID if there is one,
// otherwise the most recent transfer of the asset.
func (q *QueryService) GetTransfer(ctx context.Context, assetID string) (*Transfer, error) {
	t, err := q.repo.GetPending(ctx, assetID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	t, err = q.repo.Latest(ctx, assetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no transfer for asset %s", ErrNotFound, assetID)
		}
		return nil, err
	}
	return t, nil
}

// PendingFor returns the live PENDING transfers identity is a party to,
// annotated from identity's point of view.
func (q *QueryService) PendingFor(ctx context.Context, identity string) ([]PendingView, error) {
	transfers, err := q.repo.List(ctx, Filter{Status: StatusPending, Party: identity, Limit: maxListLimit})
	if err != nil {
		return nil, fmt.Errorf("listing pending transfers: %w", err)
	}

	now := q.now()
	views := make([]PendingView, 0, len(transfers))
	for _, t := range transfers {
		if t.IsExpired(now) {
			continue
		}
		views = append(views, PendingView{
			Transfer:      t,
			ApprovalCount: len(t.Approvals),
			IsRecipient:   t.NewOwner == identity,
			HasSigned:     NewApprovalSet(t.Approvals).Has(identity),
		})
	}
	return views, nil
}
