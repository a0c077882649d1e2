package provenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kelotduongvidainhat/ams/internal/events"
	"github.com/kelotduongvidainhat/ams/internal/transfer"
)

const (
	cypherConstraints = `CREATE CONSTRAINT identity_name IF NOT EXISTS FOR (i:Identity) REQUIRE i.name IS UNIQUE`
	cypherAssetKey    = `CREATE CONSTRAINT asset_id IF NOT EXISTS FOR (a:Asset) REQUIRE a.id IS UNIQUE`

	// The edge is keyed on transfer_id so replaying an event is a no-op.
	cypherRecordTransfer = `
MERGE (a:Asset {id: $asset_id})
  ON CREATE SET a.name = $asset_name
MERGE (from:Identity {name: $from})
MERGE (to:Identity {name: $to})
MERGE (from)-[r:TRANSFERRED {transfer_id: $transfer_id}]->(to)
  ON CREATE SET r.asset_id = $asset_id, r.ledger_tx_id = $ledger_tx_id, r.at = $at
MERGE (to)-[:OWNS]->(a)
WITH a, to
MATCH (prev:Identity)-[o:OWNS]->(a) WHERE prev <> to
DELETE o`

	cypherLineage = `
MATCH (from:Identity)-[r:TRANSFERRED {asset_id: $asset_id}]->(to:Identity)
RETURN from.name AS from, to.name AS to, r.transfer_id AS transfer_id,
       r.ledger_tx_id AS ledger_tx_id, r.at AS at
ORDER BY r.at`
)

// Hop is one executed transfer in an asset's provenance chain.
type Hop struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	TransferID string    `json:"transfer_id"`
	LedgerTxID string    `json:"ledger_tx_id,omitempty"`
	At         time.Time `json:"at"`
}

// Store writes executed transfers into the provenance graph and reads
// ownership chains back.
//
// Graph layout:
//
//	(:Identity)-[:TRANSFERRED {transfer_id, asset_id, ledger_tx_id, at}]->(:Identity)
//	(:Identity)-[:OWNS]->(:Asset)
type Store struct {
	client Client
}

// NewStore creates a store over client.
func NewStore(client Client) *Store {
	return &Store{client: client}
}

// EnsureSchema creates the uniqueness constraints the MERGE statements rely on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{cypherConstraints, cypherAssetKey} {
		if _, err := s.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("creating graph constraint: %w", err)
		}
	}
	return nil
}

// RecordTransfer adds the ownership edge for an executed transfer.
func (s *Store) RecordTransfer(ctx context.Context, t *transfer.Transfer) error {
	if t == nil || t.Status != transfer.StatusExecuted {
		return errors.New("only executed transfers have provenance")
	}

	at := time.Now().UTC()
	if t.ExecutedAt != nil {
		at = t.ExecutedAt.UTC()
	}
	params := map[string]any{
		"asset_id":     t.AssetID,
		"asset_name":   t.AssetName,
		"from":         t.CurrentOwner,
		"to":           t.NewOwner,
		"transfer_id":  t.ID,
		"ledger_tx_id": t.LedgerTxID,
		"at":           at,
	}
	if _, err := s.client.ExecuteWrite(ctx, cypherRecordTransfer, params); err != nil {
		return fmt.Errorf("recording provenance of %s: %w", t.AssetID, err)
	}
	return nil
}

// Lineage returns the executed transfers of assetID, oldest first.
func (s *Store) Lineage(ctx context.Context, assetID string) ([]Hop, error) {
	res, err := s.client.ExecuteRead(ctx, cypherLineage, map[string]any{"asset_id": assetID})
	if err != nil {
		return nil, fmt.Errorf("reading provenance of %s: %w", assetID, err)
	}

	hops := make([]Hop, 0, len(res.Records))
	for _, rec := range res.Records {
		hops = append(hops, Hop{
			From:       stringValue(rec["from"]),
			To:         stringValue(rec["to"]),
			TransferID: stringValue(rec["transfer_id"]),
			LedgerTxID: stringValue(rec["ledger_tx_id"]),
			At:         timeValue(rec["at"]),
		})
	}
	return hops, nil
}

// HealthCheck verifies the graph is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.VerifyConnectivity(ctx)
}

// Close releases the graph connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// Sink returns an events.Sink that records every executed transfer.
func (s *Store) Sink() events.Sink {
	return events.SinkFunc{
		SinkName: "provenance",
		Fn: func(ctx context.Context, ev events.Event) error {
			if ev.Type != transfer.EventExecuted || ev.Data == nil {
				return nil
			}
			return s.RecordTransfer(ctx, ev.Data)
		},
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// timeValue accepts the driver's native temporal value or an RFC 3339 string.
func timeValue(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
