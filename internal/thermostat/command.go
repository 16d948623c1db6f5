package thermostat

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Command names used on the MQTT and HTTP surfaces.
const (
	CommandSetMode             = "set_mode"
	CommandSetTargetTemp       = "set_target_temperature"
	CommandSetHeatingThreshold = "set_heating_threshold"
	CommandSetCoolingThreshold = "set_cooling_threshold"
	CommandSetFan              = "set_fan"
	CommandSetDisplayUnit      = "set_display_unit"
)

// Command is a caller-issued change to a thermostat.
// The set of implementations is closed; see TranslateCommand.
type Command interface {
	// Name returns the wire name of the command.
	Name() string

	// Params returns the command's parameters in wire form.
	Params() map[string]any

	command()
}

// SetMode switches the HVAC mode.
type SetMode struct{ Mode Mode }

// SetTargetTemp sets the single target temperature used in HEAT and COOL.
type SetTargetTemp struct{ TempC float64 }

// SetHeatingThreshold sets the lower bound of the AUTO band.
type SetHeatingThreshold struct{ TempC float64 }

// SetCoolingThreshold sets the upper bound of the AUTO band.
type SetCoolingThreshold struct{ TempC float64 }

// SetFan forces the fan on, or returns it to automatic.
type SetFan struct{ On bool }

// SetDisplayUnit pins the user-facing temperature unit. It never writes
// to the device.
type SetDisplayUnit struct{ Unit Unit }

func (SetMode) Name() string             { return CommandSetMode }
func (SetTargetTemp) Name() string       { return CommandSetTargetTemp }
func (SetHeatingThreshold) Name() string { return CommandSetHeatingThreshold }
func (SetCoolingThreshold) Name() string { return CommandSetCoolingThreshold }
func (SetFan) Name() string              { return CommandSetFan }
func (SetDisplayUnit) Name() string      { return CommandSetDisplayUnit }

func (c SetMode) Params() map[string]any             { return map[string]any{"mode": string(c.Mode)} }
func (c SetTargetTemp) Params() map[string]any       { return map[string]any{"temperature": c.TempC} }
func (c SetHeatingThreshold) Params() map[string]any { return map[string]any{"temperature": c.TempC} }
func (c SetCoolingThreshold) Params() map[string]any { return map[string]any{"temperature": c.TempC} }
func (c SetFan) Params() map[string]any              { return map[string]any{"on": c.On} }
func (c SetDisplayUnit) Params() map[string]any      { return map[string]any{"unit": string(c.Unit)} }

func (SetMode) command()             {}
func (SetTargetTemp) command()       {}
func (SetHeatingThreshold) command() {}
func (SetCoolingThreshold) command() {}
func (SetFan) command()              {}
func (SetDisplayUnit) command()      {}

// ParseCommand builds a Command from its wire name and parameters.
//
// Parameters:
//   - set_mode: {"mode": "off"|"heat"|"cool"|"auto"}
//   - set_target_temperature, set_heating_threshold, set_cooling_threshold:
//     {"temperature": <celsius>}
//   - set_fan: {"on": true|false}
//   - set_display_unit: {"unit": "celsius"|"fahrenheit"}
//
// Returns ErrInvalidCommand for unknown names and missing or mistyped parameters.
func ParseCommand(name string, params map[string]any) (Command, error) {
	switch name {
	case CommandSetMode:
		s, err := stringParam(params, "mode")
		if err != nil {
			return nil, err
		}
		m, err := ParseMode(s)
		if err != nil {
			return nil, err
		}
		return SetMode{Mode: m}, nil
	case CommandSetTargetTemp, CommandSetHeatingThreshold, CommandSetCoolingThreshold:
		v, err := numberParam(params, "temperature")
		if err != nil {
			return nil, err
		}
		switch name {
		case CommandSetTargetTemp:
			return SetTargetTemp{TempC: v}, nil
		case CommandSetHeatingThreshold:
			return SetHeatingThreshold{TempC: v}, nil
		default:
			return SetCoolingThreshold{TempC: v}, nil
		}
	case CommandSetFan:
		on, err := boolParam(params, "on")
		if err != nil {
			return nil, err
		}
		return SetFan{On: on}, nil
	case CommandSetDisplayUnit:
		s, err := stringParam(params, "unit")
		if err != nil {
			return nil, err
		}
		u, err := ParseUnit(s)
		if err != nil {
			return nil, err
		}
		return SetDisplayUnit{Unit: u}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, name)
	}
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q parameter", ErrInvalidCommand, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrInvalidCommand, key)
	}
	return s, nil
}

func numberParam(params map[string]any, key string) (float64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q parameter", ErrInvalidCommand, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidCommand, key)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidCommand, key)
	}
}

func boolParam(params map[string]any, key string) (bool, error) {
	v, ok := params[key]
	if !ok {
		return false, fmt.Errorf("%w: missing %q parameter", ErrInvalidCommand, key)
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("%w: %q must be a boolean", ErrInvalidCommand, key)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%w: %q must be a boolean", ErrInvalidCommand, key)
	}
}

// DeviceWrite is the body of a POST /control request. Setpoints are whole
// numbers in the device's current unit; Mode and Fan are wire codes.
type DeviceWrite struct {
	Mode     int  `json:"mode"`
	HeatTemp int  `json:"heattemp"`
	CoolTemp int  `json:"cooltemp"`
	Fan      *int `json:"fan,omitempty"`
}

// Form encodes the write as an application/x-www-form-urlencoded body.
func (w DeviceWrite) Form() url.Values {
	v := url.Values{}
	v.Set("mode", strconv.Itoa(w.Mode))
	v.Set("heattemp", strconv.Itoa(w.HeatTemp))
	v.Set("cooltemp", strconv.Itoa(w.CoolTemp))
	if w.Fan != nil {
		v.Set("fan", strconv.Itoa(*w.Fan))
	}
	return v
}

// CommandResult is the outcome of translating a command.
//
// Write is nil when the command only changes stored state (a threshold
// outside AUTO, a target temperature while OFF, a display unit). State is
// the state to apply once the write, if any, has succeeded.
type CommandResult struct {
	Write *DeviceWrite
	State State
}

// TranslateCommand computes the device write for cmd.
//
// latest is the snapshot fetched immediately before the command; its unit
// determines the unit of every emitted setpoint and its mode decides
// whether target and threshold commands apply. prev is the controller's
// current state.
//
// Errors:
//   - ErrInvalidCommand: unknown command or value out of range
//   - ErrUnsupportedInMode: SetTargetTemp while the device is in AUTO
func (t *Translator) TranslateCommand(cmd Command, latest Snapshot, prev State) (CommandResult, error) {
	if err := latest.validate(); err != nil {
		return CommandResult{State: prev}, err
	}

	switch c := cmd.(type) {
	case SetMode:
		return t.translateSetMode(c, latest, prev)
	case SetTargetTemp:
		return t.translateSetTarget(c, latest, prev)
	case SetHeatingThreshold:
		if err := t.checkTemp(c.TempC); err != nil {
			return CommandResult{State: prev}, err
		}
		next := prev
		next.HeatingThreshold = c.TempC
		return t.translateThresholds(latest, prev, next)
	case SetCoolingThreshold:
		if err := t.checkTemp(c.TempC); err != nil {
			return CommandResult{State: prev}, err
		}
		next := prev
		next.CoolingThreshold = c.TempC
		return t.translateThresholds(latest, prev, next)
	case SetFan:
		return t.translateSetFan(c, latest, prev)
	case SetDisplayUnit:
		if c.Unit != UnitCelsius && c.Unit != UnitFahrenheit {
			return CommandResult{State: prev}, fmt.Errorf("%w: unknown unit %q", ErrInvalidCommand, c.Unit)
		}
		next := prev
		next.DisplayUnit = c.Unit
		next.DisplayUnitSticky = true
		return CommandResult{State: next}, nil
	default:
		return CommandResult{State: prev}, fmt.Errorf("%w: unsupported command %T", ErrInvalidCommand, cmd)
	}
}

func (t *Translator) translateSetMode(c SetMode, latest Snapshot, prev State) (CommandResult, error) {
	unit := latest.TempUnit
	next := prev
	next.Mode = c.Mode

	var heat, cool int
	switch c.Mode {
	case ModeHeat:
		heat = FromCanonical(prev.TargetTemp, unit)
		cool = FromCanonical(t.limits.FallbackCoolC, unit)
	case ModeCool:
		heat = FromCanonical(t.limits.FallbackHeatC, unit)
		cool = FromCanonical(prev.TargetTemp, unit)
	case ModeAuto:
		heat = FromCanonical(prev.HeatingThreshold, unit)
		cool = FromCanonical(prev.CoolingThreshold, unit)
	case ModeOff:
		heat = FromCanonical(t.limits.FallbackHeatC, unit)
		cool = FromCanonical(t.limits.FallbackCoolC, unit)
	default:
		return CommandResult{State: prev}, fmt.Errorf("%w: unknown mode %q", ErrInvalidCommand, c.Mode)
	}

	w, err := t.buildWrite(c.Mode, heat, cool, nil)
	if err != nil {
		return CommandResult{State: prev}, err
	}
	if c.Mode == ModeAuto && w.CoolTemp != cool {
		next.CoolingThreshold = ToCanonical(float64(w.CoolTemp), unit)
	}
	return CommandResult{Write: w, State: next}, nil
}

func (t *Translator) translateSetTarget(c SetTargetTemp, latest Snapshot, prev State) (CommandResult, error) {
	if err := t.checkTemp(c.TempC); err != nil {
		return CommandResult{State: prev}, err
	}

	unit := latest.TempUnit
	next := prev
	next.TargetTemp = c.TempC

	var heat, cool int
	switch latest.Mode {
	case ModeAuto:
		return CommandResult{State: prev}, fmt.Errorf("%w: target temperature cannot be set in auto, use thresholds", ErrUnsupportedInMode)
	case ModeHeat:
		heat = FromCanonical(c.TempC, unit)
		cool = FromCanonical(t.limits.FallbackCoolC, unit)
	case ModeCool:
		heat = FromCanonical(t.limits.FallbackHeatC, unit)
		cool = FromCanonical(c.TempC, unit)
	default:
		// Stored for the next SetMode(HEAT|COOL).
		return CommandResult{State: next}, nil
	}

	w, err := t.buildWrite(latest.Mode, heat, cool, nil)
	if err != nil {
		return CommandResult{State: prev}, err
	}
	return CommandResult{Write: w, State: next}, nil
}

// translateThresholds corrects the AUTO band upward in device units and
// writes it only when the device is in AUTO.
func (t *Translator) translateThresholds(latest Snapshot, prev, next State) (CommandResult, error) {
	unit := latest.TempUnit
	heat := FromCanonical(next.HeatingThreshold, unit)
	cool := FromCanonical(next.CoolingThreshold, unit)
	if banded := t.autoBand(heat, cool); banded != cool {
		cool = banded
		next.CoolingThreshold = ToCanonical(float64(cool), unit)
	}

	if latest.Mode != ModeAuto {
		return CommandResult{State: next}, nil
	}

	w, err := t.buildWrite(ModeAuto, heat, cool, nil)
	if err != nil {
		return CommandResult{State: prev}, err
	}
	return CommandResult{Write: w, State: next}, nil
}

func (t *Translator) translateSetFan(c SetFan, latest Snapshot, prev State) (CommandResult, error) {
	fanState := FanAuto
	if c.On {
		fanState = FanOn
	}
	fan, err := t.codes.FanCode(fanState)
	if err != nil {
		return CommandResult{State: prev}, err
	}

	// Reuse the device's own setpoints so a fan toggle cannot move them.
	heat := int(math.Round(latest.HeatSetpoint))
	cool := int(math.Round(latest.CoolSetpoint))

	w, err := t.buildWrite(latest.Mode, heat, cool, &fan)
	if err != nil {
		return CommandResult{State: prev}, err
	}
	next := prev
	next.FanOn = c.On
	return CommandResult{Write: w, State: next}, nil
}

// buildWrite encodes the mode and applies the AUTO band to AUTO writes.
func (t *Translator) buildWrite(mode Mode, heat, cool int, fan *int) (*DeviceWrite, error) {
	code, err := t.codes.ModeCode(mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeAuto {
		cool = t.autoBand(heat, cool)
	}
	return &DeviceWrite{
		Mode:     code,
		HeatTemp: heat,
		CoolTemp: cool,
		Fan:      fan,
	}, nil
}

// autoBand returns cool, raised to heat+delta+1 when it sits within the
// minimum band.
func (t *Translator) autoBand(heat, cool int) int {
	if cool <= heat+t.limits.MinSetpointDelta {
		return heat + t.limits.MinSetpointDelta + 1
	}
	return cool
}

func (t *Translator) checkTemp(tempC float64) error {
	if math.IsNaN(tempC) || math.IsInf(tempC, 0) {
		return fmt.Errorf("%w: temperature is not a finite number", ErrInvalidCommand)
	}
	if tempC < t.limits.MinTempC || tempC > t.limits.MaxTempC {
		return fmt.Errorf("%w: temperature %.1f°C outside %.1f-%.1f°C",
			ErrInvalidCommand, tempC, t.limits.MinTempC, t.limits.MaxTempC)
	}
	return nil
}
