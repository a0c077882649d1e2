// Package events delivers transfer lifecycle events to their consumers.
//
// The transfer engine publishes into a Broadcaster after each committed
// transition. The Broadcaster queues events without blocking the engine and
// a single dispatcher fans them out to the registered sinks:
//
//	transfer.Engine → Broadcaster (bounded queue) → Sinks
//	                                                ├─ WebSocket hub (/ws)
//	                                                ├─ MQTTSink     (ams/events/transfer/{type})
//	                                                ├─ MetricsSink  (InfluxDB transfer_events)
//	                                                └─ provenance   (Neo4j ownership graph)
//
// Delivery is best-effort and at most once. There is no replay: a client
// connecting later sees only events published after it connected.
package events
