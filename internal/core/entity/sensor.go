package entity

import (
	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/core/port"
)

// Sensor is a read only numeric entity.
type Sensor struct {
	Identity
	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string
	Decimals    uint
	Extract     FloatExtractor
	binding
}

func (s *Sensor) Value(snap *domain.Snapshot) (float64, bool) {
	return s.Extract(snap)
}

func (s *Sensor) Render(snap *domain.Snapshot) []any {
	value, ok := s.Extract(snap)
	if !ok {
		return []any{domain.NewAvailabilityUpdate(domain.SENSOR_TYPE_SENSOR, s.Id, false)}
	}
	return []any{
		domain.NewAvailabilityUpdate(domain.SENSOR_TYPE_SENSOR, s.Id, true),
		domain.NewFloatSensorUpdate(s.Id, value, s.Decimals),
	}
}

func (s *Sensor) Attach(source port.Snapshotter, sink port.Sink) {
	s.binding.attach(source, sink, s.Render)
}

func (s *Sensor) Detach() {
	s.binding.detach()
}

// Update asks for a refresh, the new value arrives through the listener.
func (s *Sensor) Update() {
	s.binding.update()
}

func (s *Sensor) Descriptor() domain.GenericSensor {
	return domain.GenericSensor{
		Device:            s.Device,
		Id:                s.Id,
		SensorType:        domain.SENSOR_TYPE_SENSOR,
		Name:              s.Name,
		UniqueId:          s.UniqueId,
		UnitOfMeasurement: s.Unit,
		StateClass:        s.StateClass,
		DeviceClass:       s.DeviceClass,
		Icon:              s.Icon,
		Availability:      true,
	}
}
