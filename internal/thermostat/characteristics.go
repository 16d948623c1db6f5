package thermostat

import (
	"fmt"
)

// Characteristic identifies one field of State exposed to the automation
// layer with get/set semantics.
type Characteristic string

// Exposed characteristics.
const (
	CharCurrentTemperature Characteristic = "current_temperature"
	CharTargetTemperature  Characteristic = "target_temperature"
	CharHeatingThreshold   Characteristic = "heating_threshold"
	CharCoolingThreshold   Characteristic = "cooling_threshold"
	CharTargetMode         Characteristic = "target_mode"
	CharCurrentActivity    Characteristic = "current_activity"
	CharDisplayUnits       Characteristic = "display_units"
	CharFanOn              Characteristic = "fan_on"
)

// Characteristics lists every exposed characteristic in a stable order.
func Characteristics() []Characteristic {
	return []Characteristic{
		CharCurrentTemperature,
		CharTargetTemperature,
		CharHeatingThreshold,
		CharCoolingThreshold,
		CharTargetMode,
		CharCurrentActivity,
		CharDisplayUnits,
		CharFanOn,
	}
}

// Writable reports whether the characteristic accepts set.
func (c Characteristic) Writable() bool {
	switch c {
	case CharCurrentTemperature, CharCurrentActivity:
		return false
	default:
		return true
	}
}

// Value returns the current value of a characteristic.
// Temperatures are float64 Celsius, enums are strings, fan_on is a bool.
func (s State) Value(c Characteristic) (any, error) {
	switch c {
	case CharCurrentTemperature:
		return s.CurrentTemp, nil
	case CharTargetTemperature:
		return s.TargetTemp, nil
	case CharHeatingThreshold:
		return s.HeatingThreshold, nil
	case CharCoolingThreshold:
		return s.CoolingThreshold, nil
	case CharTargetMode:
		return string(s.Mode), nil
	case CharCurrentActivity:
		return string(s.CurrentActivity), nil
	case CharDisplayUnits:
		return string(s.DisplayUnit), nil
	case CharFanOn:
		return s.FanOn, nil
	default:
		return nil, fmt.Errorf("%w: unknown characteristic %q", ErrInvalidCommand, c)
	}
}

// CommandFor maps a characteristic set to the command that performs it.
// Read-only and unknown characteristics return ErrInvalidCommand.
func CommandFor(c Characteristic, value any) (Command, error) {
	params := map[string]any{}
	var name string
	switch c {
	case CharTargetTemperature:
		name, params["temperature"] = CommandSetTargetTemp, value
	case CharHeatingThreshold:
		name, params["temperature"] = CommandSetHeatingThreshold, value
	case CharCoolingThreshold:
		name, params["temperature"] = CommandSetCoolingThreshold, value
	case CharTargetMode:
		name, params["mode"] = CommandSetMode, value
	case CharDisplayUnits:
		name, params["unit"] = CommandSetDisplayUnit, value
	case CharFanOn:
		name, params["on"] = CommandSetFan, value
	case CharCurrentTemperature, CharCurrentActivity:
		return nil, fmt.Errorf("%w: %s is read-only", ErrInvalidCommand, c)
	default:
		return nil, fmt.Errorf("%w: unknown characteristic %q", ErrInvalidCommand, c)
	}
	return ParseCommand(name, params)
}
