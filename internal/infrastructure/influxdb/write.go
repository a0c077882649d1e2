package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementTransferEvents = "transfer_events"
)

// TransferEventPoint is one transfer lifecycle event as recorded in
// the transfer_events measurement.
type TransferEventPoint struct {
	EventType string
	AssetID   string
	Status    string
	Approvals int

	// Pending is how long the transfer had been open when the event fired.
	Pending time.Duration

	At time.Time
}

// WriteTransferEvent records a transfer lifecycle event.
//
// Tags are low cardinality (event type and status) plus the asset ID, so
// per-asset churn can be charted. The write is non-blocking; points are
// batched and sent asynchronously.
//
// Example:
//
//	client.WriteTransferEvent(influxdb.TransferEventPoint{
//	    EventType: "TransferExecuted",
//	    AssetID:   "asset101",
//	    Status:    "EXECUTED",
//	    Approvals: 1,
//	    Pending:   42 * time.Second,
//	    At:        time.Now(),
//	})
func (c *Client) WriteTransferEvent(p TransferEventPoint) {
	if !c.IsConnected() {
		return
	}

	at := p.At
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		MeasurementTransferEvents,
		map[string]string{
			"event":    p.EventType,
			"asset_id": p.AssetID,
			"status":   p.Status,
		},
		map[string]interface{}{
			"count":           1,
			"approvals":       p.Approvals,
			"pending_seconds": p.Pending.Seconds(),
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("api_requests",
//	    map[string]string{"route": "/api/protected/transfers/initiate"},
//	    map[string]interface{}{"duration_ms": 12.5})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., an event replayed late).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
