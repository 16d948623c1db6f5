package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// MeasurementThermostat is the measurement written for every successful poll.
const MeasurementThermostat = "thermostat"

// WriteThermostatState records one poll result. The write is batched and
// never blocks the caller; failures surface through SetOnError.
//
// Tags: device_id, mode, activity, display_unit.
// Fields: current_temperature, target_temperature, heating_threshold,
// cooling_threshold (all °C) and fan_on.
func (c *Client) WriteThermostatState(deviceID string, s thermostat.State, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(thermostatPoint(deviceID, s, at))
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func thermostatPoint(deviceID string, s thermostat.State, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementThermostat,
		map[string]string{
			"device_id":    deviceID,
			"mode":         string(s.Mode),
			"activity":     string(s.CurrentActivity),
			"display_unit": string(s.DisplayUnit),
		},
		map[string]any{
			"current_temperature": s.CurrentTemp,
			"target_temperature":  s.TargetTemp,
			"heating_threshold":   s.HeatingThreshold,
			"cooling_threshold":   s.CoolingThreshold,
			"fan_on":              s.FanOn,
		},
		at,
	)
}
