// Package thermostat holds the normalized thermostat model and the pure
// translation rules between it and a Venstar Explorer style controller.
//
// Nothing in this package performs I/O. The bridge layer
// (internal/bridges/venstar) fetches snapshots, issues writes and owns
// the per-device state; this package only decides what those snapshots
// mean and what a command should write.
//
// # Canonical Units
//
// All temperatures in State are Celsius. Conversion to and from device
// units happens only in ToCanonical and FromCanonical, and outgoing
// setpoints always use the unit reported by the latest snapshot, never
// the user-facing display unit.
//
// # Key Types
//
//   - Snapshot: one decoded read of GET /query/info
//   - State: the normalized thermostat state owned by a controller
//   - Command: SetMode, SetTargetTemp, SetHeatingThreshold,
//     SetCoolingThreshold, SetFan, SetDisplayUnit
//   - DeviceWrite: the form body for POST /control
//   - Codes: the device's wire encoding of modes, units, activity and fan
//   - Limits: setpoint band, fallback setpoints and accepted range
//
// # Usage
//
//	tr := thermostat.NewTranslator(thermostat.VenstarCodes(), thermostat.DefaultLimits())
//
//	snap, err := tr.ParseSnapshot(body)
//	if err != nil {
//	    return err // errors.Is(err, thermostat.ErrMalformedSnapshot)
//	}
//	state, err = tr.TranslateSnapshot(snap, state)
//
//	res, err := tr.TranslateCommand(thermostat.SetMode{Mode: thermostat.ModeHeat}, snap, state)
//	if res.Write != nil {
//	    form := res.Write.Form()
//	}
package thermostat
