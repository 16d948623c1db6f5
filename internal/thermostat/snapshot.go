package thermostat

import (
	"encoding/json"
	"fmt"
	"math"
)

// RawSnapshot mirrors the fields of GET /query/info that the bridge uses.
// Pointer fields distinguish a missing field from a zero value.
type RawSnapshot struct {
	Mode      *int     `json:"mode"`
	SpaceTemp *float64 `json:"spacetemp"`
	HeatTemp  *float64 `json:"heattemp"`
	CoolTemp  *float64 `json:"cooltemp"`
	TempUnits *int     `json:"tempunits"`
	State     *int     `json:"state"`
	Fan       *int     `json:"fan"`
}

// Snapshot is one decoded point-in-time read of the device.
// Temperatures are in the device's unit (TempUnit).
type Snapshot struct {
	Mode         Mode     `json:"mode"`
	SpaceTemp    float64  `json:"space_temp"`
	HeatSetpoint float64  `json:"heat_setpoint"`
	CoolSetpoint float64  `json:"cool_setpoint"`
	TempUnit     Unit     `json:"temp_unit"`
	Activity     Activity `json:"activity"`
	FanState     FanState `json:"fan_state"`
}

// Translator converts between device snapshots, normalized state and
// device writes. It is stateless and safe for concurrent use.
type Translator struct {
	codes  Codes
	limits Limits
}

// NewTranslator creates a translator for the given wire encoding and limits.
func NewTranslator(codes Codes, limits Limits) *Translator {
	return &Translator{codes: codes, limits: limits}
}

// Codes returns the translator's wire encoding.
func (t *Translator) Codes() Codes {
	return t.codes
}

// Limits returns the translator's limits.
func (t *Translator) Limits() Limits {
	return t.limits
}

// ParseSnapshot decodes a /query/info response body.
func (t *Translator) ParseSnapshot(data []byte) (Snapshot, error) {
	var raw RawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	return t.DecodeSnapshot(raw)
}

// DecodeSnapshot validates a raw snapshot and maps its codes to domain values.
func (t *Translator) DecodeSnapshot(raw RawSnapshot) (Snapshot, error) {
	switch {
	case raw.Mode == nil:
		return Snapshot{}, missingField("mode")
	case raw.SpaceTemp == nil:
		return Snapshot{}, missingField("spacetemp")
	case raw.HeatTemp == nil:
		return Snapshot{}, missingField("heattemp")
	case raw.CoolTemp == nil:
		return Snapshot{}, missingField("cooltemp")
	case raw.TempUnits == nil:
		return Snapshot{}, missingField("tempunits")
	case raw.State == nil:
		return Snapshot{}, missingField("state")
	case raw.Fan == nil:
		return Snapshot{}, missingField("fan")
	}

	mode, ok := t.codes.Modes[*raw.Mode]
	if !ok {
		return Snapshot{}, badCode("mode", *raw.Mode)
	}
	unit, ok := t.codes.Units[*raw.TempUnits]
	if !ok {
		return Snapshot{}, badCode("tempunits", *raw.TempUnits)
	}
	activity, ok := t.codes.Activities[*raw.State]
	if !ok {
		return Snapshot{}, badCode("state", *raw.State)
	}
	fan, ok := t.codes.Fans[*raw.Fan]
	if !ok {
		return Snapshot{}, badCode("fan", *raw.Fan)
	}

	snap := Snapshot{
		Mode:         mode,
		SpaceTemp:    *raw.SpaceTemp,
		HeatSetpoint: *raw.HeatTemp,
		CoolSetpoint: *raw.CoolTemp,
		TempUnit:     unit,
		Activity:     activity,
		FanState:     fan,
	}
	if err := snap.validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// TranslateSnapshot derives the normalized state from a snapshot.
//
// prev supplies the values a snapshot is not authoritative for: thresholds
// outside AUTO, and the display unit once the user has pinned it. On error
// the returned state is prev unchanged and callers must not apply it.
func (t *Translator) TranslateSnapshot(snap Snapshot, prev State) (State, error) {
	if err := snap.validate(); err != nil {
		return prev, err
	}

	next := prev
	next.CurrentTemp = ToCanonical(snap.SpaceTemp, snap.TempUnit)
	next.Mode = snap.Mode

	switch snap.Mode {
	case ModeAuto:
		next.TargetTemp = ToCanonical((snap.HeatSetpoint+snap.CoolSetpoint)/2, snap.TempUnit)
		next.HeatingThreshold = ToCanonical(snap.HeatSetpoint, snap.TempUnit)
		next.CoolingThreshold = ToCanonical(snap.CoolSetpoint, snap.TempUnit)
	case ModeHeat:
		next.TargetTemp = ToCanonical(snap.HeatSetpoint, snap.TempUnit)
	case ModeCool:
		next.TargetTemp = ToCanonical(snap.CoolSetpoint, snap.TempUnit)
	default:
		next.TargetTemp = ToCanonical(snap.SpaceTemp, snap.TempUnit)
	}

	switch snap.Activity {
	case ActivityHeating:
		next.CurrentActivity = ActivityHeating
	case ActivityCooling:
		next.CurrentActivity = ActivityCooling
	default:
		next.CurrentActivity = ActivityIdle
	}

	if !prev.DisplayUnitSticky {
		next.DisplayUnit = snap.TempUnit
	}

	next.FanOn = snap.FanState == FanOn

	return next, nil
}

// validate checks a snapshot built outside DecodeSnapshot.
func (s Snapshot) validate() error {
	switch s.Mode {
	case ModeOff, ModeHeat, ModeCool, ModeAuto:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrMalformedSnapshot, s.Mode)
	}
	switch s.TempUnit {
	case UnitFahrenheit, UnitCelsius:
	default:
		return fmt.Errorf("%w: unknown unit %q", ErrMalformedSnapshot, s.TempUnit)
	}
	for name, v := range map[string]float64{
		"spacetemp": s.SpaceTemp,
		"heattemp":  s.HeatSetpoint,
		"cooltemp":  s.CoolSetpoint,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrMalformedSnapshot, name)
		}
	}
	return nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing field %q", ErrMalformedSnapshot, name)
}

func badCode(name string, code int) error {
	return fmt.Errorf("%w: unknown %s code %d", ErrMalformedSnapshot, name, code)
}
