package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kelotduongvidainhat/ams/internal/events"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/influxdb"
	"github.com/kelotduongvidainhat/ams/internal/infrastructure/mqtt"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type mockMQTT struct {
	mock.Mock
}

func (m *mockMQTT) PublishJSON(topic string, v any, retained bool) error {
	args := m.Called(topic, v, retained)
	return args.Error(0)
}

func (m *mockMQTT) Topics() mqtt.Topics {
	return mqtt.NewTopics("ams")
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) WriteTransferEvent(p influxdb.TransferEventPoint) {
	m.Called(p)
}

func executedTransfer() *transfer.Transfer {
	created := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	executed := created.Add(90 * time.Second)
	return &transfer.Transfer{
		ID:           "trf-1",
		AssetID:      "asset101",
		CurrentOwner: "Tomoko",
		NewOwner:     "Brad",
		Status:       transfer.StatusExecuted,
		Approvals:    []transfer.Approval{{Signer: "Brad", Role: transfer.RoleNewOwner}},
		CreatedAt:    created,
		ExecutedAt:   &executed,
		LedgerTxID:   "tx-9",
	}
}

// ─── MQTTSink ───────────────────────────────────────────────────────────────

func TestMQTTSink_PublishesEvent(t *testing.T) {
	client := &mockMQTT{}
	ev := events.Event{Type: transfer.EventInitiated, Data: sampleTransfer("asset101")}
	client.On("PublishJSON", "ams/events/transfer/TransferInitiated", ev, false).Return(nil).Once()

	sink := events.NewMQTTSink(client)
	require.NoError(t, sink.Handle(context.Background(), ev))

	client.AssertExpectations(t)
	assert.Equal(t, "mqtt", sink.Name())
}

func TestMQTTSink_ExecutedPublishesRetainedOwner(t *testing.T) {
	client := &mockMQTT{}
	tr := executedTransfer()
	ev := events.Event{Type: transfer.EventExecuted, Data: tr}

	client.On("PublishJSON", "ams/events/transfer/TransferExecuted", ev, false).Return(nil).Once()
	client.On("PublishJSON", "ams/assets/asset101/owner", events.OwnerState{
		AssetID:    "asset101",
		Owner:      "Brad",
		TransferID: "trf-1",
		LedgerTxID: "tx-9",
		UpdatedAt:  *tr.ExecutedAt,
	}, true).Return(nil).Once()

	require.NoError(t, events.NewMQTTSink(client).Handle(context.Background(), ev))
	client.AssertExpectations(t)
}

func TestMQTTSink_PublishError(t *testing.T) {
	client := &mockMQTT{}
	client.On("PublishJSON", mock.Anything, mock.Anything, false).Return(mqtt.ErrNotConnected)

	err := events.NewMQTTSink(client).Handle(context.Background(),
		events.Event{Type: transfer.EventExecuted, Data: executedTransfer()})

	require.Error(t, err)
	assert.True(t, errors.Is(err, mqtt.ErrNotConnected))
	client.AssertNumberOfCalls(t, "PublishJSON", 1)
}

// ─── MetricsSink ────────────────────────────────────────────────────────────

func TestMetricsSink_RecordsExecution(t *testing.T) {
	w := &mockMetrics{}
	tr := executedTransfer()
	w.On("WriteTransferEvent", influxdb.TransferEventPoint{
		EventType: "TransferExecuted",
		AssetID:   "asset101",
		Status:    "EXECUTED",
		Approvals: 1,
		Pending:   90 * time.Second,
		At:        *tr.ExecutedAt,
	}).Once()

	sink := events.NewMetricsSink(w)
	require.NoError(t, sink.Handle(context.Background(), events.Event{Type: transfer.EventExecuted, Data: tr}))
	w.AssertExpectations(t)
	assert.Equal(t, "metrics", sink.Name())
}

func TestMetricsSink_PendingEvents(t *testing.T) {
	w := &mockMetrics{}
	w.On("WriteTransferEvent", mock.MatchedBy(func(p influxdb.TransferEventPoint) bool {
		return p.EventType == "TransferRejected" && p.AssetID == "asset102" && p.Pending >= 0 && !p.At.IsZero()
	})).Once()

	tr := sampleTransfer("asset102")
	tr.Status = transfer.StatusRejected
	require.NoError(t, events.NewMetricsSink(w).Handle(context.Background(),
		events.Event{Type: transfer.EventRejected, Data: tr}))
	w.AssertExpectations(t)
}

func TestMetricsSink_IgnoresEmptyEvent(t *testing.T) {
	w := &mockMetrics{}
	require.NoError(t, events.NewMetricsSink(w).Handle(context.Background(), events.Event{Type: transfer.EventExpired}))
	w.AssertNotCalled(t, "WriteTransferEvent", mock.Anything)
}
