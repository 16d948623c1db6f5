package homekit

import (
	"testing"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

func TestModeMappingRoundTrip(t *testing.T) {
	for _, m := range []thermostat.Mode{thermostat.ModeOff, thermostat.ModeHeat, thermostat.ModeCool, thermostat.ModeAuto} {
		got, err := modeFromHomeKit(targetStateFor(m))
		if err != nil || got != m {
			t.Errorf("mode %s round-trip = %s, %v", m, got, err)
		}
	}
}

func TestCurrentStateFor(t *testing.T) {
	tests := []struct {
		activity thermostat.Activity
		want     int
	}{
		{thermostat.ActivityIdle, hkCurrentOff},
		{thermostat.ActivityHeating, hkCurrentHeat},
		{thermostat.ActivityCooling, hkCurrentCool},
		{"defrost", hkCurrentOff},
	}
	for _, tt := range tests {
		if got := currentStateFor(tt.activity); got != tt.want {
			t.Errorf("currentStateFor(%s) = %d, want %d", tt.activity, got, tt.want)
		}
	}
}

func TestUnitMapping(t *testing.T) {
	if displayUnitsFor(thermostat.UnitFahrenheit) != hkUnitsFahrenheit {
		t.Error("fahrenheit should map to 1")
	}
	if displayUnitsFor("kelvin") != hkUnitsCelsius {
		t.Error("unknown units should fall back to celsius")
	}
	if u, err := unitFromHomeKit(hkUnitsCelsius); err != nil || u != thermostat.UnitCelsius {
		t.Errorf("unitFromHomeKit(0) = %s, %v", u, err)
	}
}
