package transfer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kelotduongvidainhat/ams/internal/infrastructure/database"
	"github.com/kelotduongvidainhat/ams/internal/ledger"
	_ "github.com/kelotduongvidainhat/ams/migrations" // registers the schema
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockLedger is an in-memory ledger with failure injection.
type mockLedger struct {
	mu      sync.Mutex
	assets  map[string]*ledger.Asset
	history map[string][]ledger.HistoryEntry
	seq     int

	appendErr   error         // returned by the next AppendTransfer, then cleared
	appendBlock bool          // AppendTransfer waits for ctx to be done
	appendDelay time.Duration // slows every AppendTransfer
	readBlock   bool          // GetAsset waits for ctx to be done
	appends     int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		assets:  make(map[string]*ledger.Asset),
		history: make(map[string][]ledger.HistoryEntry),
	}
}

func (m *mockLedger) GetOwner(_ context.Context, assetID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetID]
	if !ok {
		return "", ledger.ErrNotFound
	}
	return a.Owner, nil
}

func (m *mockLedger) GetAsset(ctx context.Context, assetID string) (*ledger.Asset, error) {
	m.mu.Lock()
	block := m.readBlock
	m.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cpy := *a
	return &cpy, nil
}

func (m *mockLedger) AppendTransfer(ctx context.Context, rec ledger.Record) (*ledger.Receipt, error) {
	m.mu.Lock()
	block, delay := m.appendBlock, m.appendDelay
	if err := m.appendErr; err != nil {
		m.appendErr = nil
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	a, ok := m.assets[rec.AssetID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	if a.Owner != rec.FromOwner {
		return nil, fmt.Errorf("%w: %s is held by %s", ledger.ErrOwnerMismatch, rec.AssetID, a.Owner)
	}
	if a.Locked {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAssetLocked, rec.AssetID)
	}

	m.seq++
	m.appends++
	now := time.Now().UTC()
	a.Owner = rec.ToOwner
	a.UpdatedAt = now
	receipt := &ledger.Receipt{TxID: fmt.Sprintf("tx-%d", m.seq), RecordedAt: now}
	m.history[rec.AssetID] = append(m.history[rec.AssetID], ledger.HistoryEntry{
		TxID:       receipt.TxID,
		AssetID:    rec.AssetID,
		FromOwner:  rec.FromOwner,
		ToOwner:    rec.ToOwner,
		TransferID: rec.TransferID,
		RecordedAt: now,
	})
	return receipt, nil
}

func (m *mockLedger) History(_ context.Context, assetID string) ([]ledger.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[assetID]; !ok {
		return nil, ledger.ErrNotFound
	}
	out := make([]ledger.HistoryEntry, len(m.history[assetID]))
	copy(out, m.history[assetID])
	return out, nil
}

func (m *mockLedger) RegisterAsset(_ context.Context, asset ledger.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[asset.ID]; ok {
		return ledger.ErrAssetExists
	}
	asset.UpdatedAt = time.Now().UTC()
	m.assets[asset.ID] = &asset
	m.seq++
	m.history[asset.ID] = []ledger.HistoryEntry{{
		TxID: fmt.Sprintf("tx-%d", m.seq), AssetID: asset.ID, ToOwner: asset.Owner, RecordedAt: asset.UpdatedAt,
	}}
	return nil
}

func (m *mockLedger) SetLocked(_ context.Context, assetID string, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetID]
	if !ok {
		return ledger.ErrNotFound
	}
	a.Locked = locked
	return nil
}

func (m *mockLedger) HealthCheck(context.Context) error { return nil }

func (m *mockLedger) setReadBlock(block bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBlock = block
}

func (m *mockLedger) owner(assetID string) string {
	owner, _ := m.GetOwner(context.Background(), assetID) //nolint:errcheck // test helper
	return owner
}

func (m *mockLedger) appendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appends
}

// mockPublisher captures published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Type     EventType
	Transfer *Transfer
}

func (m *mockPublisher) Publish(eventType EventType, t *Transfer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{Type: eventType, Transfer: t})
}

func (m *mockPublisher) getEvents() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]publishedEvent, len(m.events))
	copy(cpy, m.events)
	return cpy
}

func (m *mockPublisher) count(eventType EventType) int {
	n := 0
	for _, ev := range m.getEvents() {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

// fakeSigner produces readable, deterministic signatures.
type fakeSigner struct {
	err error
}

func (f fakeSigner) Sign(identity, assetID, newOwner string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "sig:" + identity + ":" + assetID + "|" + newOwner, nil
}

// ─── Helper ─────────────────────────────────────────────────────────────────

type testEnv struct {
	engine *Engine
	repo   *SQLiteRepository
	ledger *mockLedger
	pub    *mockPublisher
	db     *database.DB
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "ams.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if _, err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func setupEngine(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	db := openTestDB(t)
	repo := NewSQLiteRepository(db)
	l := newMockLedger()
	pub := &mockPublisher{}

	for _, a := range []ledger.Asset{
		{ID: "asset101", Name: "Sculpture", Type: "art", Owner: "Tomoko"},
		{ID: "asset102", Name: "Painting", Type: "art", Owner: "Brad"},
		{ID: "asset103", Name: "Vase", Type: "ceramic", Owner: "Max"},
	} {
		if err := l.RegisterAsset(context.Background(), a); err != nil {
			t.Fatalf("RegisterAsset(%s) error = %v", a.ID, err)
		}
	}

	engine := NewEngine(repo, l, fakeSigner{}, pub, cfg, nil)
	return &testEnv{engine: engine, repo: repo, ledger: l, pub: pub, db: db}
}

// advance moves the engine clock forward by d.
func (env *testEnv) advance(d time.Duration) {
	base := time.Now()
	env.engine.now = func() time.Time { return base.Add(d) }
}

func tomoko() Actor { return Actor{ID: "Tomoko"} }

func admin() Actor { return Actor{ID: "admin", Admin: true} }

func mustInitiate(t *testing.T, env *testEnv, assetID, newOwner string, by Actor) *Transfer {
	t.Helper()
	tr, err := env.engine.Initiate(context.Background(), assetID, newOwner, by)
	if err != nil {
		t.Fatalf("Initiate(%s -> %s) error = %v", assetID, newOwner, err)
	}
	return tr
}

var errLedgerDown = errors.New("ledger unavailable")
