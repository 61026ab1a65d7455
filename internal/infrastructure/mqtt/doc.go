// Package mqtt publishes hassbridge call events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker (typically the Mosquitto add-on) with auto-reconnect
//   - JSON event publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topics
//
// All topics live under a configurable prefix (default "hassbridge"):
//
//	hassbridge/system/status                        retained online/offline
//	hassbridge/event/<method>                       one message per RPC call
//	hassbridge/event/call_service/<domain>/<service>
//
// The broker publishes the LWT to the status topic if the process dies
// without calling Close, so subscribers can tell a crash from a shutdown.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().CallEvent("get_state")
//	err = client.PublishJSON(topic, event)
package mqtt
