package events

import (
	"context"
	"time"

	"github.com/kelotduongvidainhat/ams/internal/infrastructure/influxdb"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

// MetricsWriter is the subset of *influxdb.Client the metrics sink needs.
type MetricsWriter interface {
	WriteTransferEvent(p influxdb.TransferEventPoint)
}

// MetricsSink records every event in the transfer_events measurement.
type MetricsSink struct {
	writer MetricsWriter
	now    func() time.Time
}

// NewMetricsSink creates a sink writing through w.
func NewMetricsSink(w MetricsWriter) *MetricsSink {
	return &MetricsSink{writer: w, now: time.Now}
}

// Name implements Sink.
func (s *MetricsSink) Name() string { return "metrics" }

// Handle implements Sink. Writes are batched by the client, so this
// never blocks on the network.
func (s *MetricsSink) Handle(_ context.Context, ev Event) error {
	if ev.Data == nil {
		return nil
	}
	t := ev.Data

	at := s.now().UTC()
	if ev.Type == transfer.EventExecuted && t.ExecutedAt != nil {
		at = *t.ExecutedAt
	}
	var pending time.Duration
	if !t.CreatedAt.IsZero() && at.After(t.CreatedAt) {
		pending = at.Sub(t.CreatedAt)
	}

	s.writer.WriteTransferEvent(influxdb.TransferEventPoint{
		EventType: string(ev.Type),
		AssetID:   t.AssetID,
		Status:    string(t.Status),
		Approvals: len(t.Approvals),
		Pending:   pending,
		At:        at,
	})
	return nil
}
