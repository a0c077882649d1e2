package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestTransfer(assetID, from, to string, createdAt time.Time) *Transfer {
	return &Transfer{
		ID:           uuid.NewString(),
		AssetID:      assetID,
		AssetName:    "Asset " + assetID,
		Initiator:    from,
		CurrentOwner: from,
		NewOwner:     to,
		Status:       StatusPending,
		CreatedAt:    createdAt.UTC(),
		ExpiresAt:    createdAt.Add(time.Hour).UTC(),
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now()

	tr := newTestTransfer("asset101", "Tomoko", "Brad", now)
	if err := repo.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetPending(ctx, "asset101")
	if err != nil {
		t.Fatalf("GetPending() error = %v", err)
	}
	if got.ID != tr.ID || got.NewOwner != "Brad" || got.Status != StatusPending {
		t.Errorf("GetPending() = %+v", got)
	}
	if !got.CreatedAt.Equal(tr.CreatedAt) || !got.ExpiresAt.Equal(tr.ExpiresAt) {
		t.Errorf("timestamps = %v / %v, want %v / %v", got.CreatedAt, got.ExpiresAt, tr.CreatedAt, tr.ExpiresAt)
	}
	if got.Approvals == nil {
		t.Error("Approvals should be empty, not nil")
	}
	if got.ExecutedAt != nil {
		t.Error("ExecutedAt should be nil for a pending transfer")
	}

	byID, err := repo.GetByID(ctx, tr.ID)
	if err != nil || byID.AssetID != "asset101" {
		t.Errorf("GetByID() = %+v, %v", byID, err)
	}

	if _, err := repo.GetPending(ctx, "asset102"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPending(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_OnePendingPerAsset(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()

	first := newTestTransfer("asset101", "Tomoko", "Brad", time.Now())
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, newTestTransfer("asset101", "Tomoko", "Max", time.Now()))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second Create() error = %v, want ErrAlreadyExists", err)
	}

	// Once the first is terminal, the asset accepts a new transfer.
	if err := repo.MarkRejected(ctx, first.ID, "Brad", "no"); err != nil {
		t.Fatalf("MarkRejected() error = %v", err)
	}
	if err := repo.Create(ctx, newTestTransfer("asset101", "Tomoko", "Max", time.Now())); err != nil {
		t.Errorf("Create() after rejection error = %v", err)
	}
}

func TestSQLiteRepository_SaveApproval(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()

	tr := newTestTransfer("asset101", "Tomoko", "Brad", time.Now())
	if err := repo.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	a := Approval{Signer: "Tomoko", Role: RoleCurrentOwner, Signature: "sig-1", Comment: "ok", Timestamp: time.Now()}
	added, err := repo.SaveApproval(ctx, tr.ID, a, nil)
	if err != nil || !added {
		t.Fatalf("SaveApproval() = %v, %v", added, err)
	}
	added, err = repo.SaveApproval(ctx, tr.ID, Approval{Signer: "Tomoko", Role: RoleCurrentOwner, Signature: "sig-2", Timestamp: time.Now()}, nil)
	if err != nil || added {
		t.Fatalf("repeat SaveApproval() = %v, %v, want false, nil", added, err)
	}

	got, err := repo.GetPending(ctx, "asset101")
	if err != nil {
		t.Fatalf("GetPending() error = %v", err)
	}
	if len(got.Approvals) != 1 || got.Approvals[0].Signature != "sig-1" || got.Approvals[0].Comment != "ok" {
		t.Errorf("Approvals = %+v", got.Approvals)
	}

	executedAt := time.Now().UTC()
	exec := &Execution{ExecutedAt: executedAt, LedgerTxID: "tx-42"}
	b := Approval{Signer: "Brad", Role: RoleNewOwner, Signature: "sig-3", Timestamp: time.Now()}
	if _, err := repo.SaveApproval(ctx, tr.ID, b, exec); err != nil {
		t.Fatalf("final SaveApproval() error = %v", err)
	}

	got, err = repo.GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusExecuted || got.LedgerTxID != "tx-42" {
		t.Errorf("Status = %s, LedgerTxID = %s", got.Status, got.LedgerTxID)
	}
	if got.ExecutedAt == nil || !got.ExecutedAt.Equal(executedAt) {
		t.Errorf("ExecutedAt = %v, want %v", got.ExecutedAt, executedAt)
	}
	if len(got.Approvals) != 2 || got.Approvals[1].Signer != "Brad" {
		t.Errorf("Approvals = %+v", got.Approvals)
	}
}

func TestSQLiteRepository_SaveApprovalRollsBackOnTerminal(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()

	tr := newTestTransfer("asset101", "Tomoko", "Brad", time.Now())
	if err := repo.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.MarkExpired(ctx, tr.ID); err != nil {
		t.Fatalf("MarkExpired() error = %v", err)
	}

	_, err := repo.SaveApproval(ctx, tr.ID,
		Approval{Signer: "Brad", Role: RoleNewOwner, Signature: "s", Timestamp: time.Now()},
		&Execution{ExecutedAt: time.Now(), LedgerTxID: "tx-1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("SaveApproval() error = %v, want ErrNotFound", err)
	}

	got, err := repo.GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusExpired || len(got.Approvals) != 0 {
		t.Errorf("Status = %s, approvals = %d, want EXPIRED with none", got.Status, len(got.Approvals))
	}
}

func TestSQLiteRepository_TransitionsOnlyFromPending(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()

	tr := newTestTransfer("asset101", "Tomoko", "Brad", time.Now())
	if err := repo.Create(ctx, tr); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.MarkRejected(ctx, tr.ID, "Brad", "changed my mind"); err != nil {
		t.Fatalf("MarkRejected() error = %v", err)
	}

	if err := repo.MarkExpired(ctx, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkExpired(rejected) error = %v, want ErrNotFound", err)
	}
	if err := repo.MarkRejected(ctx, tr.ID, "Tomoko", "again"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRejected(rejected) error = %v, want ErrNotFound", err)
	}

	got, err := repo.GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.RejectedBy != "Brad" || got.RejectionReason != "changed my mind" {
		t.Errorf("rejection = %s (%q)", got.RejectedBy, got.RejectionReason)
	}
}

func TestSQLiteRepository_ListAndLatest(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	t1 := newTestTransfer("asset101", "Tomoko", "Brad", base)
	t2 := newTestTransfer("asset102", "Brad", "Max", base.Add(time.Minute))
	t3 := newTestTransfer("asset101", "Tomoko", "Max", base.Add(2*time.Minute))
	if err := repo.Create(ctx, t1); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, t2); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkRejected(ctx, t1.ID, "Brad", ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, t3); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.SaveApproval(ctx, t2.ID, Approval{Signer: "Brad", Role: RoleCurrentOwner, Timestamp: time.Now()}, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
	}{
		{"all newest first", Filter{}, []string{t3.ID, t2.ID, t1.ID}},
		{"by status", Filter{Status: StatusPending}, []string{t3.ID, t2.ID}},
		{"by asset", Filter{AssetID: "asset101"}, []string{t3.ID, t1.ID}},
		{"by party", Filter{Party: "Max"}, []string{t3.ID, t2.ID}},
		{"combined", Filter{Party: "Brad", Status: StatusRejected}, []string{t1.ID}},
		{"limit", Filter{Limit: 1}, []string{t3.ID}},
		{"offset", Filter{Limit: 1, Offset: 1}, []string{t2.ID}},
		{"no match", Filter{Party: "nobody"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("List() returned %d transfers, want %d", len(got), len(tt.wantIDs))
			}
			for i := range got {
				if got[i].ID != tt.wantIDs[i] {
					t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, tt.wantIDs[i])
				}
				if got[i].Approvals == nil {
					t.Errorf("List()[%d].Approvals is nil", i)
				}
			}
		})
	}

	all, err := repo.List(ctx, Filter{AssetID: "asset102"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || len(all[0].Approvals) != 1 {
		t.Errorf("approvals not attached in List(): %+v", all)
	}

	latest, err := repo.Latest(ctx, "asset101")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != t3.ID {
		t.Errorf("Latest() = %s, want %s", latest.ID, t3.ID)
	}
	if _, err := repo.Latest(ctx, "asset999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_ListExpiredPending(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now()

	stale := newTestTransfer("asset101", "Tomoko", "Brad", now.Add(-2*time.Hour))
	live := newTestTransfer("asset102", "Brad", "Max", now)
	staleRejected := newTestTransfer("asset103", "Max", "Brad", now.Add(-3*time.Hour))
	for _, tr := range []*Transfer{stale, live, staleRejected} {
		if err := repo.Create(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.MarkRejected(ctx, staleRejected.ID, "Brad", ""); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListExpiredPending(ctx, now)
	if err != nil {
		t.Fatalf("ListExpiredPending() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != stale.ID {
		t.Errorf("ListExpiredPending() = %+v, want only %s", got, stale.ID)
	}
}

func TestParseTime(t *testing.T) {
	ts := time.Date(2026, 1, 12, 9, 30, 0, 123456789, time.UTC)

	got, err := parseTime(formatTime(ts))
	if err != nil || !got.Equal(ts) {
		t.Errorf("parseTime(formatTime()) = %v, %v", got, err)
	}
	got, err = parseTime("2026-01-12T09:30:00+07:00")
	if err != nil || got.Hour() != 2 || got.Location() != time.UTC {
		t.Errorf("parseTime(RFC3339) = %v, %v", got, err)
	}
	if _, err := parseTime("yesterday"); err == nil {
		t.Error("parseTime(garbage) should fail")
	}
}
