// Package mqtt provides MQTT client connectivity for the optional report
// ingestion bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support and restoration on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// Devices that speak MQTT instead of HTTP publish the same report payload
// to homeauto/status/<device>; the ingest bridge subscribes with a
// single-level wildcard and feeds reports into the same pipeline as the
// HTTP endpoint.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.StatusReports(), 1,
//	    func(topic string, payload []byte) error {
//	        // decode and process the report
//	        return nil
//	    })
package mqtt
