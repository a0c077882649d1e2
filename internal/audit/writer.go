package audit

import (
	"context"
	"time"

	"github.com/kelotduongvidainhat/ams/internal/events"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

// DefaultBufferSize is the capacity of the pending-entry channel.
const DefaultBufferSize = 256

// Logger is the logging interface used by the audit writer.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Writer records audit entries asynchronously and best-effort. Record never
// blocks the caller: when the buffer is full the entry is dropped and a
// warning logged. Run writes entries one at a time, which suits SQLite's
// single-writer model.
type Writer struct {
	repo   Repository
	ch     chan *AuditLog
	logger Logger
}

// NewWriter creates a writer over repo with a buffer of size entries.
func NewWriter(repo Repository, size int, logger Logger) *Writer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Writer{repo: repo, ch: make(chan *AuditLog, size), logger: logger}
}

// Record enqueues entry for writing.
func (w *Writer) Record(entry *AuditLog) {
	select {
	case w.ch <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns nil.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-w.ch:
			w.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-w.ch:
					w.write(entry)
				default:
					return nil
				}
			}
		}
	}
}

func (w *Writer) write(entry *AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.repo.Create(ctx, entry); err != nil {
		w.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}

// Sink returns an events.Sink that records every transfer lifecycle event.
func (w *Writer) Sink() events.Sink {
	return events.SinkFunc{
		SinkName: "audit",
		Fn: func(_ context.Context, ev events.Event) error {
			if entry := EntryForEvent(ev); entry != nil {
				w.Record(entry)
			}
			return nil
		},
	}
}

// EntryForEvent maps a transfer event to an audit entry, attributing it to
// the identity that caused it. It returns nil for events without data.
func EntryForEvent(ev events.Event) *AuditLog {
	t := ev.Data
	if t == nil {
		return nil
	}

	entry := &AuditLog{
		EntityType: EntityTransfer,
		EntityID:   t.ID,
		Source:     "engine",
		Details: map[string]any{
			"asset_id":      t.AssetID,
			"current_owner": t.CurrentOwner,
			"new_owner":     t.NewOwner,
			"status":        string(t.Status),
		},
	}

	switch ev.Type {
	case transfer.EventInitiated:
		entry.Action = ActionInitiate
		entry.UserID = t.Initiator
	case transfer.EventApproved:
		entry.Action = ActionApprove
		entry.UserID = lastSigner(t)
	case transfer.EventExecuted:
		entry.Action = ActionExecute
		entry.UserID = lastSigner(t)
		entry.Details["ledger_tx_id"] = t.LedgerTxID
	case transfer.EventRejected:
		entry.Action = ActionReject
		entry.UserID = t.RejectedBy
		if t.RejectionReason != "" {
			entry.Details["reason"] = t.RejectionReason
		}
	case transfer.EventExpired:
		entry.Action = ActionExpire
	default:
		entry.Action = string(ev.Type)
	}
	return entry
}

func lastSigner(t *transfer.Transfer) string {
	if len(t.Approvals) == 0 {
		return ""
	}
	return t.Approvals[len(t.Approvals)-1].Signer
}
