package homekit

import (
	"fmt"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// HomeKit enum values for the Thermostat service. These are fixed by the
// HomeKit Accessory Protocol.
const (
	hkCurrentOff  = 0
	hkCurrentHeat = 1
	hkCurrentCool = 2

	hkTargetOff  = 0
	hkTargetHeat = 1
	hkTargetCool = 2
	hkTargetAuto = 3

	hkUnitsCelsius    = 0
	hkUnitsFahrenheit = 1
)

var targetToHomeKit = map[thermostat.Mode]int{
	thermostat.ModeOff:  hkTargetOff,
	thermostat.ModeHeat: hkTargetHeat,
	thermostat.ModeCool: hkTargetCool,
	thermostat.ModeAuto: hkTargetAuto,
}

var activityToHomeKit = map[thermostat.Activity]int{
	thermostat.ActivityIdle:    hkCurrentOff,
	thermostat.ActivityHeating: hkCurrentHeat,
	thermostat.ActivityCooling: hkCurrentCool,
}

var unitToHomeKit = map[thermostat.Unit]int{
	thermostat.UnitCelsius:    hkUnitsCelsius,
	thermostat.UnitFahrenheit: hkUnitsFahrenheit,
}

func targetStateFor(m thermostat.Mode) int {
	if v, ok := targetToHomeKit[m]; ok {
		return v
	}
	return hkTargetOff
}

func currentStateFor(a thermostat.Activity) int {
	if v, ok := activityToHomeKit[a]; ok {
		return v
	}
	return hkCurrentOff
}

func displayUnitsFor(u thermostat.Unit) int {
	if v, ok := unitToHomeKit[u]; ok {
		return v
	}
	return hkUnitsCelsius
}

func modeFromHomeKit(v int) (thermostat.Mode, error) {
	for mode, hk := range targetToHomeKit {
		if hk == v {
			return mode, nil
		}
	}
	return "", fmt.Errorf("%w: unknown HomeKit target state %d", thermostat.ErrInvalidCommand, v)
}

func unitFromHomeKit(v int) (thermostat.Unit, error) {
	for unit, hk := range unitToHomeKit {
		if hk == v {
			return unit, nil
		}
	}
	return "", fmt.Errorf("%w: unknown HomeKit display units %d", thermostat.ErrInvalidCommand, v)
}
