package thermostat

import "fmt"

// Codes is the wire encoding of a controller's enumerations.
//
// Translators receive a Codes value at construction instead of consulting a
// package-level table, so a second controller dialect (or a test) can
// supply its own encoding.
type Codes struct {
	Modes      map[int]Mode
	Units      map[int]Unit
	Activities map[int]Activity
	Fans       map[int]FanState
}

// VenstarCodes returns the encoding used by the Venstar local API.
//
//	mode:      0=off 1=heat 2=cool 3=auto
//	tempunits: 0=fahrenheit 1=celsius
//	state:     0=idle 1=heating 2=cooling
//	fan:       0=auto 1=on
func VenstarCodes() Codes {
	return Codes{
		Modes: map[int]Mode{
			0: ModeOff,
			1: ModeHeat,
			2: ModeCool,
			3: ModeAuto,
		},
		Units: map[int]Unit{
			0: UnitFahrenheit,
			1: UnitCelsius,
		},
		Activities: map[int]Activity{
			0: ActivityIdle,
			1: ActivityHeating,
			2: ActivityCooling,
		},
		Fans: map[int]FanState{
			0: FanAuto,
			1: FanOn,
		},
	}
}

// ModeCode returns the wire code for a mode.
func (c Codes) ModeCode(m Mode) (int, error) {
	code, ok := codeFor(c.Modes, m)
	if !ok {
		return 0, fmt.Errorf("%w: mode %q has no device code", ErrInvalidCommand, m)
	}
	return code, nil
}

// FanCode returns the wire code for a fan state.
func (c Codes) FanCode(f FanState) (int, error) {
	code, ok := codeFor(c.Fans, f)
	if !ok {
		return 0, fmt.Errorf("%w: fan state %q has no device code", ErrInvalidCommand, f)
	}
	return code, nil
}

func codeFor[T comparable](table map[int]T, v T) (int, bool) {
	for code, val := range table {
		if val == v {
			return code, true
		}
	}
	return 0, false
}
