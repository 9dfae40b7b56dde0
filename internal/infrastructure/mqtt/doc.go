// Package mqtt is the telemetry service's broker connection.
//
// Sensors publish their readings to the broker. The service subscribes to
// each configured state topic, keeps the latest value in memory, and turns
// those values into InfluxDB line protocol on a schedule or on command.
//
//	Sensors → MQTT Broker → graylogic-telemetry → InfluxDB
//
// Besides sensor state the client carries:
//   - Commands on graylogic/telemetry/command/+, answered on .../result/<verb>
//   - The retained backlog status on graylogic/telemetry/backlog
//   - A retained online/offline status, with the offline form as Last Will
//
// Subscriptions survive reconnects until they are dropped with Unsubscribe.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.AllCommands()
//	err = client.Subscribe(topic, 1, handleCommand)
//	...
//	err = client.PublishRetained(mqtt.Topics{}.Backlog(), status)
//	...
//	err = client.Unsubscribe(topic)
//
// Enable cfg.Broker.TLS for anything beyond a trusted LAN. Payloads are
// not encrypted beyond the transport.
package mqtt
