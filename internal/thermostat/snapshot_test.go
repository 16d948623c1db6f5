package thermostat

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 0.05

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func newTestTranslator() *Translator {
	return NewTranslator(VenstarCodes(), DefaultLimits())
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func rawFull() RawSnapshot {
	return RawSnapshot{
		Mode:      intPtr(3),
		SpaceTemp: floatPtr(70),
		HeatTemp:  floatPtr(68),
		CoolTemp:  floatPtr(74),
		TempUnits: intPtr(0),
		State:     intPtr(0),
		Fan:       intPtr(0),
	}
}

func TestTranslateSnapshot_AutoFahrenheit(t *testing.T) {
	tr := newTestTranslator()

	snap, err := tr.ParseSnapshot([]byte(`{"mode":3,"spacetemp":70,"heattemp":68,"cooltemp":74,"tempunits":0,"state":0,"fan":0}`))
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}

	state, err := tr.TranslateSnapshot(snap, NewState(tr.Limits()))
	if err != nil {
		t.Fatalf("TranslateSnapshot() error = %v", err)
	}

	if !approxEqual(state.CurrentTemp, 21.1) {
		t.Errorf("CurrentTemp = %.3f, want ≈21.1", state.CurrentTemp)
	}
	if !approxEqual(state.HeatingThreshold, 20.0) {
		t.Errorf("HeatingThreshold = %.3f, want ≈20.0", state.HeatingThreshold)
	}
	if !approxEqual(state.CoolingThreshold, 23.3) {
		t.Errorf("CoolingThreshold = %.3f, want ≈23.3", state.CoolingThreshold)
	}
	if !approxEqual(state.TargetTemp, 21.67) {
		t.Errorf("TargetTemp = %.3f, want ≈21.67 (midpoint)", state.TargetTemp)
	}
	if state.CurrentActivity != ActivityIdle {
		t.Errorf("CurrentActivity = %q, want idle", state.CurrentActivity)
	}
	if state.Mode != ModeAuto {
		t.Errorf("Mode = %q, want auto", state.Mode)
	}
	if state.DisplayUnit != UnitFahrenheit {
		t.Errorf("DisplayUnit = %q, want fahrenheit", state.DisplayUnit)
	}
	if state.FanOn {
		t.Error("FanOn = true, want false")
	}
}

func TestTranslateSnapshot_TargetByMode(t *testing.T) {
	tr := newTestTranslator()

	tests := []struct {
		name   string
		mode   Mode
		target float64
	}{
		{"heat uses heat setpoint", ModeHeat, 19},
		{"cool uses cool setpoint", ModeCool, 25},
		{"auto uses midpoint", ModeAuto, 22},
		{"off uses space temp", ModeOff, 21.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{
				Mode:         tt.mode,
				SpaceTemp:    21.5,
				HeatSetpoint: 19,
				CoolSetpoint: 25,
				TempUnit:     UnitCelsius,
				Activity:     ActivityIdle,
				FanState:     FanAuto,
			}
			state, err := tr.TranslateSnapshot(snap, NewState(tr.Limits()))
			if err != nil {
				t.Fatalf("TranslateSnapshot() error = %v", err)
			}
			if !approxEqual(state.TargetTemp, tt.target) {
				t.Errorf("TargetTemp = %.2f, want %.2f", state.TargetTemp, tt.target)
			}
		})
	}
}

func TestTranslateSnapshot_ThresholdsOnlyInAuto(t *testing.T) {
	tr := newTestTranslator()
	prev := NewState(tr.Limits())
	prev.HeatingThreshold = 18
	prev.CoolingThreshold = 26

	snap := Snapshot{
		Mode:         ModeHeat,
		SpaceTemp:    20,
		HeatSetpoint: 22,
		CoolSetpoint: 23,
		TempUnit:     UnitCelsius,
		Activity:     ActivityHeating,
		FanState:     FanOn,
	}

	state, err := tr.TranslateSnapshot(snap, prev)
	if err != nil {
		t.Fatalf("TranslateSnapshot() error = %v", err)
	}
	if state.HeatingThreshold != 18 || state.CoolingThreshold != 26 {
		t.Errorf("thresholds = %.1f/%.1f, want retained 18/26", state.HeatingThreshold, state.CoolingThreshold)
	}
	if state.CurrentActivity != ActivityHeating {
		t.Errorf("CurrentActivity = %q, want heating", state.CurrentActivity)
	}
	if !state.FanOn {
		t.Error("FanOn = false, want true")
	}

	snap.Mode = ModeAuto
	state, err = tr.TranslateSnapshot(snap, prev)
	if err != nil {
		t.Fatalf("TranslateSnapshot() error = %v", err)
	}
	if state.HeatingThreshold != 22 || state.CoolingThreshold != 23 {
		t.Errorf("thresholds = %.1f/%.1f, want device 22/23", state.HeatingThreshold, state.CoolingThreshold)
	}
}

func TestTranslateSnapshot_StickyDisplayUnit(t *testing.T) {
	tr := newTestTranslator()

	res, err := tr.TranslateCommand(SetDisplayUnit{Unit: UnitFahrenheit},
		Snapshot{Mode: ModeOff, TempUnit: UnitCelsius}, NewState(tr.Limits()))
	if err != nil {
		t.Fatalf("TranslateCommand() error = %v", err)
	}
	if res.Write != nil {
		t.Fatalf("SetDisplayUnit produced a device write: %+v", res.Write)
	}
	state := res.State

	for _, units := range []int{0, 1, 1, 0} {
		raw := rawFull()
		raw.TempUnits = intPtr(units)
		snap, err := tr.DecodeSnapshot(raw)
		if err != nil {
			t.Fatalf("DecodeSnapshot() error = %v", err)
		}
		state, err = tr.TranslateSnapshot(snap, state)
		if err != nil {
			t.Fatalf("TranslateSnapshot() error = %v", err)
		}
		if state.DisplayUnit != UnitFahrenheit {
			t.Fatalf("DisplayUnit = %q after poll with tempunits=%d, want fahrenheit", state.DisplayUnit, units)
		}
	}
}

func TestTranslateSnapshot_AdoptsDeviceUnitWhenNotSticky(t *testing.T) {
	tr := newTestTranslator()
	raw := rawFull()
	raw.TempUnits = intPtr(1)
	snap, err := tr.DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}

	prev := NewState(tr.Limits())
	prev.DisplayUnit = UnitFahrenheit
	state, err := tr.TranslateSnapshot(snap, prev)
	if err != nil {
		t.Fatalf("TranslateSnapshot() error = %v", err)
	}
	if state.DisplayUnit != UnitCelsius {
		t.Errorf("DisplayUnit = %q, want celsius", state.DisplayUnit)
	}
}

func TestTranslateSnapshot_Idempotent(t *testing.T) {
	tr := newTestTranslator()
	snap, err := tr.DecodeSnapshot(rawFull())
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}

	prev := NewState(tr.Limits())
	first, err := tr.TranslateSnapshot(snap, prev)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tr.TranslateSnapshot(snap, prev)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("same snapshot, same prev gave different states:\n%+v\n%+v", first, second)
	}

	third, err := tr.TranslateSnapshot(snap, first)
	if err != nil {
		t.Fatal(err)
	}
	if first != third {
		t.Errorf("re-applying snapshot changed state:\n%+v\n%+v", first, third)
	}
}

func TestDecodeSnapshot_Malformed(t *testing.T) {
	tr := newTestTranslator()

	tests := []struct {
		name   string
		mutate func(*RawSnapshot)
	}{
		{"missing mode", func(r *RawSnapshot) { r.Mode = nil }},
		{"missing spacetemp", func(r *RawSnapshot) { r.SpaceTemp = nil }},
		{"missing heattemp", func(r *RawSnapshot) { r.HeatTemp = nil }},
		{"missing cooltemp", func(r *RawSnapshot) { r.CoolTemp = nil }},
		{"missing tempunits", func(r *RawSnapshot) { r.TempUnits = nil }},
		{"missing state", func(r *RawSnapshot) { r.State = nil }},
		{"missing fan", func(r *RawSnapshot) { r.Fan = nil }},
		{"unknown mode", func(r *RawSnapshot) { r.Mode = intPtr(7) }},
		{"unknown units", func(r *RawSnapshot) { r.TempUnits = intPtr(2) }},
		{"unknown state", func(r *RawSnapshot) { r.State = intPtr(-1) }},
		{"unknown fan", func(r *RawSnapshot) { r.Fan = intPtr(3) }},
		{"nan temperature", func(r *RawSnapshot) { r.SpaceTemp = floatPtr(math.NaN()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawFull()
			tt.mutate(&raw)
			_, err := tr.DecodeSnapshot(raw)
			if !errors.Is(err, ErrMalformedSnapshot) {
				t.Errorf("DecodeSnapshot() error = %v, want ErrMalformedSnapshot", err)
			}
		})
	}
}

func TestParseSnapshot_BadJSON(t *testing.T) {
	tr := newTestTranslator()

	for _, body := range []string{
		``,
		`not json`,
		`{"mode":"auto"}`,
		`{"mode":3,"spacetemp":70}`,
	} {
		if _, err := tr.ParseSnapshot([]byte(body)); !errors.Is(err, ErrMalformedSnapshot) {
			t.Errorf("ParseSnapshot(%q) error = %v, want ErrMalformedSnapshot", body, err)
		}
	}
}

func TestTranslateSnapshot_RejectsInvalidSnapshot(t *testing.T) {
	tr := newTestTranslator()
	prev := NewState(tr.Limits())

	state, err := tr.TranslateSnapshot(Snapshot{Mode: "turbo", TempUnit: UnitCelsius}, prev)
	if !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("error = %v, want ErrMalformedSnapshot", err)
	}
	if state != prev {
		t.Error("state changed on malformed snapshot")
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	for _, unit := range []Unit{UnitFahrenheit, UnitCelsius} {
		for tenth := -400; tenth <= 1200; tenth++ {
			temp := float64(tenth) / 10
			got := FromCanonical(ToCanonical(temp, unit), unit)
			want := int(math.Round(temp))
			if got != want {
				t.Fatalf("round trip %s %.1f = %d, want %d", unit, temp, got, want)
			}
		}
	}
}

func TestToCanonical(t *testing.T) {
	tests := []struct {
		in   float64
		unit Unit
		want float64
	}{
		{32, UnitFahrenheit, 0},
		{212, UnitFahrenheit, 100},
		{-40, UnitFahrenheit, -40},
		{21.5, UnitCelsius, 21.5},
	}
	for _, tt := range tests {
		if got := ToCanonical(tt.in, tt.unit); !approxEqual(got, tt.want) {
			t.Errorf("ToCanonical(%.1f, %s) = %.3f, want %.3f", tt.in, tt.unit, got, tt.want)
		}
	}
}
