// Package mqtt provides MQTT client connectivity for the pool bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge uses MQTT as its outward-facing bus: capability state and
// edge-triggered events flow out on retained/non-retained topics, and
// set-requests flow in on command topics. The broker decouples the bridge
// from whatever home-automation runtime consumes the pool state.
//
//	Pool Bridge ↔ MQTT Broker ↔ Automation Runtime / Dashboards
//
// # Topic Scheme
//
//	poolbridge/state/{pool_id}/{capability}    retained capability values
//	poolbridge/event/{pool_id}/{event}         edge-triggered events
//	poolbridge/command/{pool_id}/{capability}  inbound set-requests
//	poolbridge/ack/{pool_id}/{capability}      set-request outcomes
//	poolbridge/status/{pool_id}                device availability
//	poolbridge/system/status                   bridge process status (LWT)
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	err = client.Subscribe(topics.AllCommands("pool-1"), 1,
//	    func(topic string, payload []byte) error {
//	        return dispatch(topic, payload)
//	    })
//
//	client.PublishRetained(topics.CapabilityState("pool-1", "ph"), []byte(`{"value":7.4}`))
package mqtt
