package entity

import (
	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/core/port"
)

// Switch is the power state of an AC or a light. Commands go to the cloud and
// the switch state follows on the next refresh.
type Switch struct {
	Identity
	ApplianceId   string
	ApplianceType string
	Icon          string
	Extract       BoolExtractor
	binding
}

func (s *Switch) Value(snap *domain.Snapshot) (bool, bool) {
	return s.Extract(snap)
}

func (s *Switch) Render(snap *domain.Snapshot) []any {
	on, ok := s.Extract(snap)
	if !ok {
		return []any{domain.NewAvailabilityUpdate(domain.COMPONENT_SWITCH, s.Id, false)}
	}
	return []any{
		domain.NewAvailabilityUpdate(domain.COMPONENT_SWITCH, s.Id, true),
		domain.SwitchSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: s.Id},
			Value:                  on,
		},
	}
}

func (s *Switch) Attach(source port.Snapshotter, sink port.Sink) {
	s.binding.attach(source, sink, s.Render)
}

func (s *Switch) Detach() {
	s.binding.detach()
}

func (s *Switch) Update() {
	s.binding.update()
}

func (s *Switch) Descriptor() domain.GenericSwitch {
	return domain.GenericSwitch{
		Device:       s.Device,
		Id:           s.Id,
		Name:         s.Name,
		UniqueId:     s.UniqueId,
		Icon:         s.Icon,
		Availability: true,
	}
}
