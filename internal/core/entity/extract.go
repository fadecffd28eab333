package entity

import (
	"math"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/pkg/natureremo"
)

// FloatExtractor reads one value from a snapshot. ok is false when any part of
// the path is missing.
type FloatExtractor func(snap *domain.Snapshot) (value float64, ok bool)

type BoolExtractor func(snap *domain.Snapshot) (value bool, ok bool)

// cumulative energy unit codes, in kWh
var energyUnits = map[int]float64{
	0x00: 1,
	0x01: 0.1,
	0x02: 0.01,
	0x03: 0.001,
	0x04: 0.0001,
	0x0A: 10,
	0x0B: 100,
	0x0C: 1000,
	0x0D: 10000,
}

func smartMeterProperty(snap *domain.Snapshot, applianceId string, epc int) (float64, bool) {
	appliance, ok := snap.Appliance(applianceId)
	if !ok || appliance.SmartMeter == nil {
		return 0, false
	}
	prop, ok := appliance.SmartMeter.Property(epc)
	if !ok {
		return 0, false
	}
	value, err := prop.Value.Float64()
	if err != nil || math.IsNaN(value) {
		return 0, false
	}
	return value, true
}

// InstantPower reads the instantaneous power in watts.
func InstantPower(applianceId string) FloatExtractor {
	return func(snap *domain.Snapshot) (float64, bool) {
		return smartMeterProperty(snap, applianceId, natureremo.EPC_MEASURED_INSTANTANEOUS_WATT)
	}
}

// CumulativeEnergy reads the normal direction cumulative energy in kWh.
func CumulativeEnergy(applianceId string) FloatExtractor {
	return func(snap *domain.Snapshot) (float64, bool) {
		raw, ok := smartMeterProperty(snap, applianceId, natureremo.EPC_NORMAL_CUMULATIVE_ENERGY)
		if !ok {
			return 0, false
		}
		unitCode, ok := smartMeterProperty(snap, applianceId, natureremo.EPC_CUMULATIVE_ENERGY_UNIT)
		if !ok {
			return 0, false
		}
		unit, ok := energyUnits[int(unitCode)]
		if !ok {
			return 0, false
		}
		coefficient, ok := smartMeterProperty(snap, applianceId, natureremo.EPC_COEFFICIENT)
		if !ok || coefficient == 0 {
			coefficient = 1
		}
		return raw * coefficient * unit, true
	}
}

func DeviceEvent(deviceId string, kind domain.SensorKind) FloatExtractor {
	return func(snap *domain.Snapshot) (float64, bool) {
		device, ok := snap.Device(deviceId)
		if !ok {
			return 0, false
		}
		ev, ok := device.NewestEvent(kind)
		if !ok {
			return 0, false
		}
		return ev.Value, true
	}
}

func AirconPower(applianceId string) BoolExtractor {
	return func(snap *domain.Snapshot) (bool, bool) {
		appliance, ok := snap.Appliance(applianceId)
		if !ok || appliance.Settings == nil {
			return false, false
		}
		return appliance.Settings.PowerOn(), true
	}
}

func LightPower(applianceId string) BoolExtractor {
	return func(snap *domain.Snapshot) (bool, bool) {
		appliance, ok := snap.Appliance(applianceId)
		if !ok || appliance.Light == nil {
			return false, false
		}
		return appliance.Light.State.Power == natureremo.LIGHT_BUTTON_ON, true
	}
}
