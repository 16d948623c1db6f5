// Package mqtt connects the Venstar bridge to the Gray Logic message bus.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and retain flags
//   - Subscriptions that survive reconnects
//   - Last Will and Testament on the bridge health topic
//
// # Topics
//
// The bridge owns the venstar protocol segment:
//
//	graylogic/state/venstar/{device_id}    retained thermostat state
//	graylogic/command/venstar/{device_id}  inbound commands
//	graylogic/ack/venstar/{device_id}      command acknowledgements
//	graylogic/health/venstar               retained bridge health and LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        _, deviceID, _ := mqtt.ParseDeviceTopic(topic)
//	        log.Printf("command for %s: %s", deviceID, payload)
//	        return nil
//	    })
package mqtt
