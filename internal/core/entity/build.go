package entity

import (
	"fmt"
	"slices"
	"strings"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/core/port"
	"github.com/berfenger/remo2mqtt/pkg/natureremo"
)

const NAME_PREFIX = "Nature Remo"

type deviceSensorSpec struct {
	kind        domain.SensorKind
	suffix      string
	label       string
	unit        string
	deviceClass string
	decimals    uint
}

var deviceSensorSpecs = []deviceSensorSpec{
	{natureremo.SENSOR_KIND_TEMPERATURE, "te", "Temperature", "°C", domain.DEVICE_CLASS_TEMPERATURE, 1},
	{natureremo.SENSOR_KIND_HUMIDITY, "hu", "Humidity", "%", domain.DEVICE_CLASS_HUMIDITY, 0},
	{natureremo.SENSOR_KIND_ILLUMINANCE, "il", "Illuminance", "lx", domain.DEVICE_CLASS_ILLUMINANCE, 0},
}

// Set holds every entity built from one snapshot.
type Set struct {
	Sensors  []*Sensor
	Switches []*Switch
}

// Build derives entities from the appliances and devices present in snap. The
// snapshot only decides which entities exist, their values are read later.
func Build(snap *domain.Snapshot, bridge domain.Device) *Set {
	set := &Set{}
	if snap == nil {
		return set
	}

	for _, id := range sortedKeys(snap.Appliances) {
		appliance := snap.Appliances[id]
		device := applianceDevice(snap, appliance, bridge)
		name := entityName(appliance.Nickname)

		switch appliance.Type {
		case natureremo.APPLIANCE_TYPE_SMART_METER:
			if appliance.SmartMeter == nil {
				continue
			}
			set.Sensors = append(set.Sensors, &Sensor{
				Identity:    NewIdentity(appliance.Id, name, device),
				Unit:        "W",
				DeviceClass: domain.DEVICE_CLASS_POWER,
				StateClass:  domain.STATE_CLASS_MEASUREMENT,
				Icon:        "mdi:flash",
				Extract:     InstantPower(appliance.Id),
			})
			if _, ok := appliance.SmartMeter.Property(natureremo.EPC_NORMAL_CUMULATIVE_ENERGY); ok {
				set.Sensors = append(set.Sensors, &Sensor{
					Identity:    NewIdentity(appliance.Id+"-energy", name+" Energy", device),
					Unit:        "kWh",
					DeviceClass: domain.DEVICE_CLASS_ENERGY,
					StateClass:  domain.STATE_CLASS_TOTAL_INCREASING,
					Icon:        "mdi:meter-electric",
					Decimals:    2,
					Extract:     CumulativeEnergy(appliance.Id),
				})
			}
		case natureremo.APPLIANCE_TYPE_AC:
			set.Switches = append(set.Switches, &Switch{
				Identity:      NewIdentity(appliance.Id, name, device),
				ApplianceId:   appliance.Id,
				ApplianceType: appliance.Type,
				Icon:          "mdi:air-conditioner",
				Extract:       AirconPower(appliance.Id),
			})
		case natureremo.APPLIANCE_TYPE_LIGHT:
			set.Switches = append(set.Switches, &Switch{
				Identity:      NewIdentity(appliance.Id, name, device),
				ApplianceId:   appliance.Id,
				ApplianceType: appliance.Type,
				Icon:          "mdi:lightbulb",
				Extract:       LightPower(appliance.Id),
			})
		}
	}

	for _, id := range sortedKeys(snap.Devices) {
		dev := snap.Devices[id]
		device := domain.RemoHubDevice(dev, bridge.Id)
		for _, spec := range deviceSensorSpecs {
			if _, ok := dev.NewestEvent(spec.kind); !ok {
				continue
			}
			set.Sensors = append(set.Sensors, &Sensor{
				Identity:    NewIdentity(fmt.Sprintf("%s-%s", dev.Id, spec.suffix), entityName(dev.Name+" "+spec.label), device),
				Unit:        spec.unit,
				DeviceClass: spec.deviceClass,
				StateClass:  domain.STATE_CLASS_MEASUREMENT,
				Decimals:    spec.decimals,
				Extract:     DeviceEvent(dev.Id, spec.kind),
			})
		}
	}
	return set
}

func (s *Set) All() []Entity {
	all := make([]Entity, 0, len(s.Sensors)+len(s.Switches))
	for _, sensor := range s.Sensors {
		all = append(all, sensor)
	}
	for _, sw := range s.Switches {
		all = append(all, sw)
	}
	return all
}

func (s *Set) AttachAll(source port.Snapshotter, sink port.Sink) {
	for _, e := range s.All() {
		e.Attach(source, sink)
	}
}

func (s *Set) DetachAll() {
	for _, e := range s.All() {
		e.Detach()
	}
}

// UniqueIds lists every entity id in build order.
func (s *Set) UniqueIds() []string {
	ids := make([]string, 0, len(s.Sensors)+len(s.Switches))
	for _, e := range s.All() {
		ids = append(ids, e.Identity().UniqueId)
	}
	return ids
}

func (s *Set) SameAs(other *Set) bool {
	return slices.Equal(s.UniqueIds(), other.UniqueIds())
}

// Missing returns the entities of s that other does not have.
func (s *Set) Missing(other *Set) *Set {
	keep := other.UniqueIds()
	res := &Set{}
	for _, sensor := range s.Sensors {
		if !slices.Contains(keep, sensor.UniqueId) {
			res.Sensors = append(res.Sensors, sensor)
		}
	}
	for _, sw := range s.Switches {
		if !slices.Contains(keep, sw.UniqueId) {
			res.Switches = append(res.Switches, sw)
		}
	}
	return res
}

// Switch looks a switch up by its topic id.
func (s *Set) Switch(id string) (*Switch, bool) {
	for _, sw := range s.Switches {
		if sw.Id == id {
			return sw, true
		}
	}
	return nil, false
}

func (s *Set) SensorDescriptors() []domain.GenericSensor {
	res := make([]domain.GenericSensor, 0, len(s.Sensors))
	for _, sensor := range s.Sensors {
		res = append(res, sensor.Descriptor())
	}
	return res
}

func (s *Set) SwitchDescriptors() []domain.GenericSwitch {
	res := make([]domain.GenericSwitch, 0, len(s.Switches))
	for _, sw := range s.Switches {
		res = append(res, sw.Descriptor())
	}
	return res
}

// applianceDevice prefers the full device record over the summary nested in the appliance.
func applianceDevice(snap *domain.Snapshot, appliance domain.Appliance, bridge domain.Device) domain.Device {
	if dev, ok := snap.Device(appliance.Device.Id); ok {
		return domain.RemoHubDevice(dev, bridge.Id)
	}
	if appliance.Device.Id != "" {
		return domain.RemoHubDevice(appliance.Device, bridge.Id)
	}
	return domain.IdDevice(bridge)
}

func entityName(name string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", NAME_PREFIX, strings.TrimSpace(name)))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
