package homekit

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// Accessory metadata reported to HomeKit.
const (
	manufacturer = "Venstar"
	model        = "Explorer Mini"
	tempStepC    = 0.5
)

// setFunc writes one characteristic through the bridge.
type setFunc func(ch thermostat.Characteristic, value any) error

// thermostatAccessory is the HAP view of one Venstar thermostat.
type thermostatAccessory struct {
	deviceID string
	*accessory.Thermostat

	heatingThreshold *characteristic.HeatingThresholdTemperature
	coolingThreshold *characteristic.CoolingThresholdTemperature
	fan              *service.Fan

	set setFunc
}

func newThermostatAccessory(deviceID, name, serial, firmware string, limits thermostat.Limits, set setFunc) *thermostatAccessory {
	a := &thermostatAccessory{
		deviceID: deviceID,
		Thermostat: accessory.NewThermostat(accessory.Info{
			Name:         name,
			SerialNumber: serial,
			Manufacturer: manufacturer,
			Model:        model,
			Firmware:     firmware,
		}),
		heatingThreshold: characteristic.NewHeatingThresholdTemperature(),
		coolingThreshold: characteristic.NewCoolingThresholdTemperature(),
		fan:              service.NewFan(),
		set:              set,
	}

	svc := a.Thermostat.Thermostat
	for _, f := range []*characteristic.Float{svc.TargetTemperature.Float, a.heatingThreshold.Float, a.coolingThreshold.Float} {
		f.SetMinValue(limits.MinTempC)
		f.SetMaxValue(limits.MaxTempC)
		f.SetStepValue(tempStepC)
	}
	svc.AddC(a.heatingThreshold.C)
	svc.AddC(a.coolingThreshold.C)
	a.A.AddS(a.fan.S)

	svc.TargetHeatingCoolingState.OnSetRemoteValue(a.setTargetMode)
	svc.TargetTemperature.OnSetRemoteValue(a.setTargetTemperature)
	svc.TemperatureDisplayUnits.OnSetRemoteValue(a.setDisplayUnits)
	a.heatingThreshold.OnSetRemoteValue(a.setHeatingThreshold)
	a.coolingThreshold.OnSetRemoteValue(a.setCoolingThreshold)
	a.fan.On.OnSetRemoteValue(a.setFan)

	a.update(thermostat.NewState(limits))
	return a
}

func (a *thermostatAccessory) setTargetMode(v int) error {
	mode, err := modeFromHomeKit(v)
	if err != nil {
		return err
	}
	return a.set(thermostat.CharTargetMode, string(mode))
}

func (a *thermostatAccessory) setTargetTemperature(v float64) error {
	return a.set(thermostat.CharTargetTemperature, v)
}

func (a *thermostatAccessory) setHeatingThreshold(v float64) error {
	return a.set(thermostat.CharHeatingThreshold, v)
}

func (a *thermostatAccessory) setCoolingThreshold(v float64) error {
	return a.set(thermostat.CharCoolingThreshold, v)
}

func (a *thermostatAccessory) setDisplayUnits(v int) error {
	unit, err := unitFromHomeKit(v)
	if err != nil {
		return err
	}
	return a.set(thermostat.CharDisplayUnits, string(unit))
}

func (a *thermostatAccessory) setFan(on bool) error {
	return a.set(thermostat.CharFanOn, on)
}

// update pushes a published state into the characteristic values.
func (a *thermostatAccessory) update(s thermostat.State) {
	svc := a.Thermostat.Thermostat
	svc.CurrentTemperature.SetValue(s.CurrentTemp)
	svc.TargetTemperature.SetValue(s.TargetTemp)
	svc.CurrentHeatingCoolingState.SetValue(currentStateFor(s.CurrentActivity))
	svc.TargetHeatingCoolingState.SetValue(targetStateFor(s.Mode))
	svc.TemperatureDisplayUnits.SetValue(displayUnitsFor(s.DisplayUnit))
	a.heatingThreshold.SetValue(s.HeatingThreshold)
	a.coolingThreshold.SetValue(s.CoolingThreshold)
	a.fan.On.SetValue(s.FanOn)
}
