package events

import (
	"context"
	"fmt"
	"time"

	"github.com/kelotduongvidainhat/ams/internal/infrastructure/mqtt"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

// MQTTPublisher is the subset of *mqtt.Client the MQTT sink needs.
type MQTTPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
	Topics() mqtt.Topics
}

// OwnerState is the retained payload of an asset's owner topic.
type OwnerState struct {
	AssetID    string    `json:"asset_id"`
	Owner      string    `json:"owner"`
	TransferID string    `json:"transfer_id"`
	LedgerTxID string    `json:"ledger_tx_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MQTTSink publishes every event to {prefix}/events/transfer/{type} and, on
// execution, the new owner as a retained message on {prefix}/assets/{id}/owner.
type MQTTSink struct {
	client MQTTPublisher
}

// NewMQTTSink creates a sink publishing through client.
func NewMQTTSink(client MQTTPublisher) *MQTTSink {
	return &MQTTSink{client: client}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Handle implements Sink.
func (s *MQTTSink) Handle(_ context.Context, ev Event) error {
	topics := s.client.Topics()

	if err := s.client.PublishJSON(topics.TransferEvent(string(ev.Type)), ev, false); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Type, err)
	}

	if ev.Type != transfer.EventExecuted || ev.Data == nil {
		return nil
	}
	state := OwnerState{
		AssetID:    ev.Data.AssetID,
		Owner:      ev.Data.NewOwner,
		TransferID: ev.Data.ID,
		LedgerTxID: ev.Data.LedgerTxID,
		UpdatedAt:  time.Now().UTC(),
	}
	if ev.Data.ExecutedAt != nil {
		state.UpdatedAt = *ev.Data.ExecutedAt
	}
	if err := s.client.PublishJSON(topics.AssetOwner(state.AssetID), state, true); err != nil {
		return fmt.Errorf("publishing owner of %s: %w", state.AssetID, err)
	}
	return nil
}
