package transfer

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a Transfer.
type Status string

// Transfer states. PENDING is the only non-terminal state.
const (
	StatusPending  Status = "PENDING"
	StatusExecuted Status = "EXECUTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusRejected || s == StatusExpired
}

// ParseStatus parses a case-insensitive status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusExecuted, StatusRejected, StatusExpired:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, s)
	}
}

// ApproverRole is the party an approval was given as.
type ApproverRole string

// Approver roles.
const (
	RoleCurrentOwner ApproverRole = "CURRENT_OWNER"
	RoleNewOwner     ApproverRole = "NEW_OWNER"
)

// Approval is a signed consent to a transfer.
type Approval struct {
	Signer    string       `json:"signer"`
	Role      ApproverRole `json:"role"`
	Signature string       `json:"signature"`
	Comment   string       `json:"comment,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Transfer is a request to move an asset from CurrentOwner to NewOwner.
type Transfer struct {
	ID              string     `json:"id"`
	AssetID         string     `json:"asset_id"`
	AssetName       string     `json:"asset_name,omitempty"`
	Initiator       string     `json:"initiator"`
	CurrentOwner    string     `json:"current_owner"`
	NewOwner        string     `json:"new_owner"`
	Status          Status     `json:"status"`
	Approvals       []Approval `json:"approvals"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	LedgerTxID      string     `json:"ledger_tx_id,omitempty"`
}

// Clone returns a deep copy, safe to hand to other goroutines.
func (t *Transfer) Clone() *Transfer {
	if t == nil {
		return nil
	}
	c := *t
	c.Approvals = make([]Approval, len(t.Approvals))
	copy(c.Approvals, t.Approvals)
	if t.ExecutedAt != nil {
		at := *t.ExecutedAt
		c.ExecutedAt = &at
	}
	return &c
}

// RoleOf returns the approver role identity holds on this transfer.
func (t *Transfer) RoleOf(identity string) (ApproverRole, bool) {
	switch identity {
	case "":
		return "", false
	case t.NewOwner:
		return RoleNewOwner, true
	case t.CurrentOwner:
		return RoleCurrentOwner, true
	default:
		return "", false
	}
}

// IsParty reports whether identity is the current or the new owner.
func (t *Transfer) IsParty(identity string) bool {
	_, ok := t.RoleOf(identity)
	return ok
}

// IsExpired reports whether a PENDING transfer has passed its deadline.
func (t *Transfer) IsExpired(now time.Time) bool {
	return t.Status == StatusPending && !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Actor is the identity performing an operation.
type Actor struct {
	ID    string
	Admin bool
}

// EventType names a transfer lifecycle event.
type EventType string

// Lifecycle events, emitted once per committed transition.
const (
	EventInitiated EventType = "TransferInitiated"
	EventApproved  EventType = "TransferApproved"
	EventExecuted  EventType = "TransferExecuted"
	EventRejected  EventType = "TransferRejected"
	EventExpired   EventType = "TransferExpired"
)

// Filter selects transfers for the admin query path.
type Filter struct {
	Status  Status // optional
	AssetID string // optional
	Party   string // optional: initiator, current owner or new owner
	Limit   int    // default 100, max 500
	Offset  int
}
