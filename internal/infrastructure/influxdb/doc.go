// Package influxdb provides InfluxDB connectivity for AMS transfer metrics.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes and health monitoring.
//
// # Purpose
//
// Every transfer lifecycle event is recorded in the transfer_events
// measurement (see events.MetricsSink), giving operators throughput,
// rejection and expiry rates and the time transfers spend pending.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "ams",
//	    Bucket:  "transfers",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTransferEvent(influxdb.TransferEventPoint{EventType: "TransferExecuted", AssetID: "asset101"})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are non-blocking; batch errors are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
