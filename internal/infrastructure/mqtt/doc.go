// Package mqtt provides the MQTT connection used to fan transfer events out
// to external consumers.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - Topic subscriptions with wildcard support (used by amsctl events watch)
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The HTTP API and the WebSocket hub serve interactive clients. MQTT is the
// integration bus: downstream systems subscribe to transfer events without
// polling the API.
//
//	Transfer Engine → events.Broadcaster → MQTTSink → Broker → Consumers
//
// Delivery is best-effort. A publish that fails while the broker is down is
// logged by the sink and not retried.
//
// # Security Considerations
//
//   - TLS should be enabled outside development (cfg.Broker.TLS=true)
//   - Credentials are validated against the broker ACL
//   - Payloads are transfer records; they carry signatures but no secrets
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllTransferEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        fmt.Printf("%s %s\n", topic, payload)
//	        return nil
//	    })
package mqtt
