// Package influxdb writes thermostat telemetry to InfluxDB v2.
//
// Every successful poll produces one "thermostat" point tagged with the
// device ID and mode. Writes are batched and asynchronous, so a slow or
// absent InfluxDB server never delays the poll loop. The integration is
// optional and disabled by default.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteThermostatState("hallway", state, time.Now())
package influxdb
