package thermostat

import (
	"fmt"
	"math"
	"strings"
)

// Mode is the HVAC operating mode.
type Mode string

// Supported modes.
const (
	ModeOff  Mode = "off"
	ModeHeat Mode = "heat"
	ModeCool Mode = "cool"
	ModeAuto Mode = "auto"
)

// Unit is a temperature unit, used both for the device's native unit and
// the user-facing display unit.
type Unit string

// Supported units.
const (
	UnitFahrenheit Unit = "fahrenheit"
	UnitCelsius    Unit = "celsius"
)

// Activity is what the equipment is doing right now.
type Activity string

// Supported activities.
const (
	ActivityIdle    Activity = "idle"
	ActivityHeating Activity = "heating"
	ActivityCooling Activity = "cooling"
)

// FanState is the fan setting reported by the device.
type FanState string

// Supported fan states.
const (
	FanAuto FanState = "auto"
	FanOn   FanState = "on"
)

// ParseMode converts a user-supplied mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeOff, ModeHeat, ModeCool, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidCommand, s)
	}
}

// ParseUnit converts a user-supplied unit name to a Unit.
// Accepts "celsius", "fahrenheit", "c" and "f".
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "celsius", "c":
		return UnitCelsius, nil
	case "fahrenheit", "f":
		return UnitFahrenheit, nil
	default:
		return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidCommand, s)
	}
}

// State is the normalized thermostat state for one device.
//
// All temperatures are Celsius. HeatingThreshold and CoolingThreshold are
// only refreshed from the device while it is in AUTO; outside AUTO they keep
// their last known values. DisplayUnitSticky is set once a user chooses a
// display unit explicitly, after which polls no longer change DisplayUnit.
//
// State is a plain value; copying it yields an independent snapshot.
type State struct {
	CurrentTemp       float64  `json:"current_temperature"`
	TargetTemp        float64  `json:"target_temperature"`
	HeatingThreshold  float64  `json:"heating_threshold"`
	CoolingThreshold  float64  `json:"cooling_threshold"`
	Mode              Mode     `json:"mode"`
	CurrentActivity   Activity `json:"current_activity"`
	DisplayUnit       Unit     `json:"display_unit"`
	DisplayUnitSticky bool     `json:"display_unit_sticky"`
	FanOn             bool     `json:"fan_on"`
}

// Initial state values used before the first successful poll.
const (
	initialCurrentTempC = 20.0
	initialTargetTempC  = 22.0
)

// NewState returns the conservative defaults a controller starts with.
// Thresholds start at the fallback setpoints so that an early SetMode(AUTO)
// writes a valid band.
func NewState(limits Limits) State {
	return State{
		CurrentTemp:      initialCurrentTempC,
		TargetTemp:       initialTargetTempC,
		HeatingThreshold: limits.FallbackHeatC,
		CoolingThreshold: limits.FallbackCoolC,
		Mode:             ModeAuto,
		CurrentActivity:  ActivityIdle,
		DisplayUnit:      UnitCelsius,
	}
}

// Limits bounds what the translators accept and emit.
type Limits struct {
	// MinSetpointDelta is the minimum AUTO band width, in device-unit degrees.
	MinSetpointDelta int

	// FallbackHeatC and FallbackCoolC are written when a setpoint cannot be
	// derived from state. The device requires both fields on every write.
	FallbackHeatC float64
	FallbackCoolC float64

	// MinTempC and MaxTempC bound accepted setpoint commands.
	MinTempC float64
	MaxTempC float64
}

// Default limit values.
const (
	DefaultMinSetpointDelta = 2
	DefaultFallbackHeatC    = 21.0
	DefaultFallbackCoolC    = 24.0
	DefaultMinTempC         = 10.0
	DefaultMaxTempC         = 32.0
)

// DefaultLimits returns the limits used when configuration does not override them.
func DefaultLimits() Limits {
	return Limits{
		MinSetpointDelta: DefaultMinSetpointDelta,
		FallbackHeatC:    DefaultFallbackHeatC,
		FallbackCoolC:    DefaultFallbackCoolC,
		MinTempC:         DefaultMinTempC,
		MaxTempC:         DefaultMaxTempC,
	}
}

// Validate reports limits that would make the translators misbehave.
func (l Limits) Validate() error {
	var errs []string
	if l.MinSetpointDelta < 0 {
		errs = append(errs, "min setpoint delta must not be negative")
	}
	if l.MinTempC >= l.MaxTempC {
		errs = append(errs, "min temperature must be below max temperature")
	}
	if l.FallbackHeatC >= l.FallbackCoolC {
		errs = append(errs, "fallback heat setpoint must be below fallback cool setpoint")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid limits: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ToCanonical converts a device-unit temperature to Celsius.
func ToCanonical(t float64, unit Unit) float64 {
	if unit == UnitFahrenheit {
		return (t - 32) * 5 / 9
	}
	return t
}

// roundingPrecision snaps float noise from a unit round trip before the
// final rounding, so 68.5°F converted to Celsius and back still rounds to 69.
const roundingPrecision = 1e6

// FromCanonical converts a Celsius temperature to a whole device-unit value.
func FromCanonical(tC float64, unit Unit) int {
	v := tC
	if unit == UnitFahrenheit {
		v = tC*9/5 + 32
	}
	v = math.Round(v*roundingPrecision) / roundingPrecision
	return int(math.Round(v))
}
