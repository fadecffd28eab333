package entity

import (
	"sync"
	"testing"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/pkg/natureremo"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	snapshot  *domain.Snapshot
	events    eventstream.EventStream
	refreshes int
}

func (f *fakeSource) Get() *domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeSource) RequestRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeSource) AddListener(fn func(*domain.Snapshot)) *eventstream.Subscription {
	return f.events.Subscribe(func(evt any) {
		fn(evt.(*domain.Snapshot))
	})
}

func (f *fakeSource) RemoveListener(sub *eventstream.Subscription) {
	f.events.Unsubscribe(sub)
}

func (f *fakeSource) commit(snap *domain.Snapshot) {
	f.mu.Lock()
	f.snapshot = snap
	f.mu.Unlock()
	f.events.Publish(snap)
}

type recordingSink struct {
	events []any
}

func (s *recordingSink) Publish(evt any) {
	s.events = append(s.events, evt)
}

func meterSnapshot(props ...natureremo.EchonetProperty) *domain.Snapshot {
	snap := domain.EmptySnapshot()
	snap.Appliances["meter"] = domain.Appliance{
		Id:         "meter",
		Nickname:   "Smart Meter",
		Type:       natureremo.APPLIANCE_TYPE_SMART_METER,
		Device:     domain.RemoDevice{Id: "hub"},
		SmartMeter: &natureremo.SmartMeter{EchonetProperties: props},
	}
	return snap
}

func prop(epc int, value string) natureremo.EchonetProperty {
	return natureremo.EchonetProperty{Epc: epc, Value: natureremo.PropertyValue(value)}
}

func hubSnapshot() *domain.Snapshot {
	snap := domain.EmptySnapshot()
	snap.Devices["hub-1"] = domain.RemoDevice{
		Id:              "hub-1",
		Name:            "Living Room",
		SerialNumber:    "1W320",
		FirmwareVersion: "Remo/1.0.23",
		NewestEvents: map[natureremo.SensorKind]natureremo.SensorEvent{
			natureremo.SENSOR_KIND_TEMPERATURE: {Value: 21.5},
			natureremo.SENSOR_KIND_HUMIDITY:    {Value: 60},
		},
	}
	return snap
}

func TestInstantPower(t *testing.T) {
	power := InstantPower("meter")

	value, ok := power(meterSnapshot(prop(225, "10"), prop(231, "450")))
	assert.True(t, ok)
	assert.Equal(t, 450.0, value)

	_, ok = power(meterSnapshot(prop(225, "10")))
	assert.False(t, ok)

	_, ok = power(meterSnapshot(prop(231, "")))
	assert.False(t, ok)

	_, ok = power(domain.EmptySnapshot())
	assert.False(t, ok)

	_, ok = power(nil)
	assert.False(t, ok)
}

func TestCumulativeEnergy(t *testing.T) {
	energy := CumulativeEnergy("meter")

	value, ok := energy(meterSnapshot(prop(211, "1"), prop(224, "12345"), prop(225, "1")))
	assert.True(t, ok)
	assert.InDelta(t, 1234.5, value, 1e-9)

	value, ok = energy(meterSnapshot(prop(224, "7"), prop(225, "10")))
	assert.True(t, ok)
	assert.InDelta(t, 70.0, value, 1e-9)

	_, ok = energy(meterSnapshot(prop(224, "7"), prop(225, "99")))
	assert.False(t, ok, "unknown unit code")

	_, ok = energy(meterSnapshot(prop(224, "7")))
	assert.False(t, ok)
}

func TestDeviceEvents(t *testing.T) {
	snap := hubSnapshot()

	te, ok := DeviceEvent("hub-1", natureremo.SENSOR_KIND_TEMPERATURE)(snap)
	assert.True(t, ok)
	assert.Equal(t, 21.5, te)

	hu, ok := DeviceEvent("hub-1", natureremo.SENSOR_KIND_HUMIDITY)(snap)
	assert.True(t, ok)
	assert.Equal(t, 60.0, hu)

	_, ok = DeviceEvent("hub-1", natureremo.SENSOR_KIND_ILLUMINANCE)(snap)
	assert.False(t, ok)

	_, ok = DeviceEvent("missing", natureremo.SENSOR_KIND_TEMPERATURE)(snap)
	assert.False(t, ok)
}

func TestSwitchExtractors(t *testing.T) {
	snap := domain.EmptySnapshot()
	snap.Appliances["ac"] = domain.Appliance{Id: "ac", Type: natureremo.APPLIANCE_TYPE_AC,
		Settings: &natureremo.AirconSettings{Button: natureremo.AIRCON_BUTTON_POWER_OFF}}
	snap.Appliances["light"] = domain.Appliance{Id: "light", Type: natureremo.APPLIANCE_TYPE_LIGHT,
		Light: &natureremo.Light{State: natureremo.LightState{Power: "on"}}}
	snap.Appliances["tv"] = domain.Appliance{Id: "tv", Type: natureremo.APPLIANCE_TYPE_TV}

	on, ok := AirconPower("ac")(snap)
	assert.True(t, ok)
	assert.False(t, on)

	on, ok = LightPower("light")(snap)
	assert.True(t, ok)
	assert.True(t, on)

	_, ok = AirconPower("tv")(snap)
	assert.False(t, ok)
	_, ok = LightPower("tv")(snap)
	assert.False(t, ok)
}

func TestBuild(t *testing.T) {
	assert := assert.New(t)

	snap := hubSnapshot()
	meter := meterSnapshot(prop(224, "100"), prop(225, "1"), prop(231, "450"))
	snap.Appliances["meter"] = meter.Appliances["meter"]
	snap.Appliances["ac-1"] = domain.Appliance{Id: "ac-1", Nickname: "Bedroom AC", Type: natureremo.APPLIANCE_TYPE_AC,
		Device: domain.RemoDevice{Id: "hub-1"}}
	snap.Appliances["tv"] = domain.Appliance{Id: "tv", Nickname: "TV", Type: natureremo.APPLIANCE_TYPE_TV}

	bridge := domain.BridgeDevice("remo2mqtt")
	set := Build(snap, bridge)

	require.Len(t, set.Sensors, 4)
	assert.Equal("meter", set.Sensors[0].UniqueId)
	assert.Equal("Nature Remo Smart Meter", set.Sensors[0].Name)
	assert.Equal("meter-energy", set.Sensors[1].UniqueId)
	assert.Equal("total_increasing", set.Sensors[1].StateClass)
	assert.Equal(domain.STATE_CLASS_TOTAL_INCREASING, set.Sensors[1].StateClass)
	assert.Equal("hub-1-te", set.Sensors[2].UniqueId)
	assert.Equal("hub_1_te", set.Sensors[2].Id)
	assert.Equal("Nature Remo Living Room Temperature", set.Sensors[2].Name)
	assert.Equal("hub-1-hu", set.Sensors[3].UniqueId)
	assert.Equal("Nature Remo Living Room Humidity", set.Sensors[3].Name)

	hubDevice := set.Sensors[2].Device
	assert.Equal("Nature Remo", hubDevice.Manufacturer)
	assert.Equal("1W320", hubDevice.Model)
	assert.Equal("Remo/1.0.23", hubDevice.Version)
	assert.Equal(bridge.Id, hubDevice.ViaDevice)

	require.Len(t, set.Switches, 1)
	assert.Equal("ac-1", set.Switches[0].UniqueId)
	assert.Equal("Nature Remo Bedroom AC", set.Switches[0].Name)
	assert.Equal(hubDevice, set.Switches[0].Device, "appliance uses the full device record")

	sw, ok := set.Switch("ac_1")
	assert.True(ok)
	assert.Same(set.Switches[0], sw)

	again := Build(snap, bridge)
	for i := range set.Sensors {
		assert.Equal(set.Sensors[i].UniqueId, again.Sensors[i].UniqueId)
	}
}

func TestSetChanges(t *testing.T) {
	bridge := domain.BridgeDevice("remo2mqtt")
	empty := Build(domain.EmptySnapshot(), bridge)
	hub := Build(hubSnapshot(), bridge)

	assert.Empty(t, empty.All())
	assert.False(t, empty.SameAs(hub))
	assert.True(t, hub.SameAs(Build(hubSnapshot(), bridge)))

	gone := hub.Missing(empty)
	assert.Equal(t, hub.UniqueIds(), gone.UniqueIds())
	assert.Empty(t, empty.Missing(hub).All())
}

func TestSensorAttach(t *testing.T) {
	source := &fakeSource{snapshot: domain.EmptySnapshot()}
	sink := &recordingSink{}
	sensor := Build(hubSnapshot(), domain.BridgeDevice("remo2mqtt")).Sensors[0]

	sensor.Attach(source, sink)
	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.NewAvailabilityUpdate(domain.SENSOR_TYPE_SENSOR, "hub_1_te", false), sink.events[0])

	source.commit(hubSnapshot())
	require.Len(t, sink.events, 3)
	assert.Equal(t, domain.NewAvailabilityUpdate(domain.SENSOR_TYPE_SENSOR, "hub_1_te", true), sink.events[1])
	assert.Equal(t, domain.NewFloatSensorUpdate("hub_1_te", 21.5, 1), sink.events[2])

	sensor.Update()
	assert.Equal(t, 1, source.refreshes)

	sensor.Detach()
	source.commit(hubSnapshot())
	assert.Len(t, sink.events, 3)
}
