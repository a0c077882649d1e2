package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kelotduongvidainhat/ams/internal/infrastructure/database"
)

// timeLayout stores timestamps as fixed-width UTC text so that ORDER BY on
// the column is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// List paging bounds.
const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Execution is the ledger outcome written together with the final approval.
type Execution struct {
	ExecutedAt time.Time
	LedgerTxID string
}

// Repository persists transfers and their approvals.
type Repository interface {
	// Create inserts a PENDING transfer. ErrAlreadyExists if the asset
	// already has one.
	Create(ctx context.Context, t *Transfer) error

	// GetPending returns the PENDING transfer for assetID or ErrNotFound.
	GetPending(ctx context.Context, assetID string) (*Transfer, error)

	// GetByID returns a transfer by its ID or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Transfer, error)

	// Latest returns the most recently created transfer for assetID.
	Latest(ctx context.Context, assetID string) (*Transfer, error)

	// SaveApproval inserts an approval, ignoring a repeat signer. When exec
	// is non-nil the transfer is marked EXECUTED in the same transaction.
	// It reports whether the approval was new.
	SaveApproval(ctx context.Context, transferID string, a Approval, exec *Execution) (bool, error)

	// MarkRejected moves a PENDING transfer to REJECTED.
	MarkRejected(ctx context.Context, id, by, reason string) error

	// MarkExpired moves a PENDING transfer to EXPIRED.
	MarkExpired(ctx context.Context, id string) error

	// List returns transfers matching f, newest first.
	List(ctx context.Context, f Filter) ([]Transfer, error)

	// ListExpiredPending returns PENDING transfers whose deadline is before now.
	ListExpiredPending(ctx context.Context, now time.Time) ([]Transfer, error)
}

// transferColumns is the SELECT column list for transfer queries.
const transferColumns = `id, asset_id, asset_name, initiator, current_owner, new_owner, status,
	created_at, expires_at, executed_at, rejected_by, rejection_reason, ledger_tx_id`

type transferRow struct {
	ID              string         `db:"id"`
	AssetID         string         `db:"asset_id"`
	AssetName       string         `db:"asset_name"`
	Initiator       string         `db:"initiator"`
	CurrentOwner    string         `db:"current_owner"`
	NewOwner        string         `db:"new_owner"`
	Status          string         `db:"status"`
	CreatedAt       string         `db:"created_at"`
	ExpiresAt       string         `db:"expires_at"`
	ExecutedAt      sql.NullString `db:"executed_at"`
	RejectedBy      sql.NullString `db:"rejected_by"`
	RejectionReason sql.NullString `db:"rejection_reason"`
	LedgerTxID      sql.NullString `db:"ledger_tx_id"`
}

type approvalRow struct {
	TransferID string `db:"transfer_id"`
	Signer     string `db:"signer"`
	Role       string `db:"role"`
	Signature  string `db:"signature"`
	Comment    string `db:"comment"`
	SignedAt   string `db:"signed_at"`
}

// SQLiteRepository implements Repository on the local SQLite database.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository over a migrated database.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new PENDING transfer.
func (r *SQLiteRepository) Create(ctx context.Context, t *Transfer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transfers (id, asset_id, asset_name, initiator, current_owner, new_owner, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AssetID, t.AssetName, t.Initiator, t.CurrentOwner, t.NewOwner, string(t.Status),
		formatTime(t.CreatedAt), formatTime(t.ExpiresAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w for asset %s", ErrAlreadyExists, t.AssetID)
		}
		return fmt.Errorf("creating transfer: %w", err)
	}
	return nil
}

// GetPending returns the PENDING transfer for assetID.
func (r *SQLiteRepository) GetPending(ctx context.Context, assetID string) (*Transfer, error) {
	return r.getOne(ctx, `SELECT `+transferColumns+` FROM transfers WHERE asset_id = ? AND status = 'PENDING'`, assetID)
}

// GetByID returns a transfer by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Transfer, error) {
	return r.getOne(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = ?`, id)
}

// Latest returns the newest transfer for assetID.
func (r *SQLiteRepository) Latest(ctx context.Context, assetID string) (*Transfer, error) {
	return r.getOne(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE asset_id = ? ORDER BY created_at DESC LIMIT 1`, assetID)
}

// SaveApproval inserts a (possibly final) approval.
func (r *SQLiteRepository) SaveApproval(ctx context.Context, transferID string, a Approval, exec *Execution) (bool, error) {
	var added bool
	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transfer_approvals (transfer_id, signer, role, signature, comment, signed_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (transfer_id, signer) DO NOTHING`,
			transferID, a.Signer, string(a.Role), a.Signature, a.Comment, formatTime(a.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("inserting approval: %w", err)
		}
		n, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
		added = n > 0

		if exec == nil {
			return nil
		}
		return transition(ctx, tx, transferID,
			`UPDATE transfers SET status = 'EXECUTED', executed_at = ?, ledger_tx_id = ? WHERE id = ? AND status = 'PENDING'`,
			formatTime(exec.ExecutedAt), exec.LedgerTxID, transferID,
		)
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

// MarkRejected moves a PENDING transfer to REJECTED.
func (r *SQLiteRepository) MarkRejected(ctx context.Context, id, by, reason string) error {
	return transition(ctx, r.db, id,
		`UPDATE transfers SET status = 'REJECTED', rejected_by = ?, rejection_reason = ? WHERE id = ? AND status = 'PENDING'`,
		by, reason, id,
	)
}

// MarkExpired moves a PENDING transfer to EXPIRED.
func (r *SQLiteRepository) MarkExpired(ctx context.Context, id string) error {
	return transition(ctx, r.db, id,
		`UPDATE transfers SET status = 'EXPIRED' WHERE id = ? AND status = 'PENDING'`, id)
}

// List returns transfers matching f, newest first, approvals included.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]Transfer, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var conditions []string
	var args []any
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.AssetID != "" {
		conditions = append(conditions, "asset_id = ?")
		args = append(args, f.AssetID)
	}
	if f.Party != "" {
		conditions = append(conditions, "(initiator = ? OR current_owner = ? OR new_owner = ?)")
		args = append(args, f.Party, f.Party, f.Party)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := `SELECT ` + transferColumns + ` FROM transfers ` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?` //nolint:gosec // WHERE built from parameterised conditions
	args = append(args, f.Limit, f.Offset)

	return r.getMany(ctx, query, args...)
}

// ListExpiredPending returns PENDING transfers past their deadline.
func (r *SQLiteRepository) ListExpiredPending(ctx context.Context, now time.Time) ([]Transfer, error) {
	return r.getMany(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE status = 'PENDING' AND expires_at < ? ORDER BY expires_at`,
		formatTime(now))
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, args ...any) (*Transfer, error) {
	var row transferRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying transfer: %w", err)
	}

	t, err := row.toTransfer()
	if err != nil {
		return nil, err
	}
	if err := r.attachApprovals(ctx, []*Transfer{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLiteRepository) getMany(ctx context.Context, query string, args ...any) ([]Transfer, error) {
	var rows []transferRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying transfers: %w", err)
	}

	out := make([]Transfer, len(rows))
	ptrs := make([]*Transfer, len(rows))
	for i := range rows {
		t, err := rows[i].toTransfer()
		if err != nil {
			return nil, err
		}
		out[i] = *t
		ptrs[i] = &out[i]
	}
	if err := r.attachApprovals(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// attachApprovals loads approvals for all transfers in one query.
func (r *SQLiteRepository) attachApprovals(ctx context.Context, transfers []*Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	byID := make(map[string]*Transfer, len(transfers))
	ids := make([]string, 0, len(transfers))
	for _, t := range transfers {
		t.Approvals = []Approval{}
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	query, args, err := sqlx.In(
		`SELECT transfer_id, signer, role, signature, comment, signed_at
		 FROM transfer_approvals WHERE transfer_id IN (?) ORDER BY seq`, ids)
	if err != nil {
		return fmt.Errorf("building approvals query: %w", err)
	}

	var rows []approvalRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("querying approvals: %w", err)
	}
	for _, row := range rows {
		ts, err := parseTime(row.SignedAt)
		if err != nil {
			return err
		}
		t := byID[row.TransferID]
		t.Approvals = append(t.Approvals, Approval{
			Signer:    row.Signer,
			Role:      ApproverRole(row.Role),
			Signature: row.Signature,
			Comment:   row.Comment,
			Timestamp: ts,
		})
	}
	return nil
}

func (row *transferRow) toTransfer() (*Transfer, error) {
	t := &Transfer{
		ID:              row.ID,
		AssetID:         row.AssetID,
		AssetName:       row.AssetName,
		Initiator:       row.Initiator,
		CurrentOwner:    row.CurrentOwner,
		NewOwner:        row.NewOwner,
		Status:          Status(row.Status),
		RejectedBy:      row.RejectedBy.String,
		RejectionReason: row.RejectionReason.String,
		LedgerTxID:      row.LedgerTxID.String,
		Approvals:       []Approval{},
	}

	var err error
	if t.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return nil, err
	}
	if t.ExpiresAt, err = parseTime(row.ExpiresAt); err != nil {
		return nil, err
	}
	if row.ExecutedAt.Valid {
		at, err := parseTime(row.ExecutedAt.String)
		if err != nil {
			return nil, err
		}
		t.ExecutedAt = &at
	}
	return t, nil
}

// execer is satisfied by *sqlx.DB and *sqlx.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// transition runs a status-guarded UPDATE and maps "no row changed" to ErrNotFound.
func transition(ctx context.Context, db execer, id, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating transfer %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return fmt.Errorf("%w: transfer %s is not pending", ErrNotFound, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}
