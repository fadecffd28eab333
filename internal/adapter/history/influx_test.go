package history

import (
	"sync"
	"testing"
	"time"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/pkg/natureremo"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushed int
	errs    chan error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{errs: make(chan error)}
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushed++
}

func (w *fakeWriter) Errors() <-chan error {
	return w.errs
}

func historySnapshot() *domain.Snapshot {
	snap := domain.EmptySnapshot()
	snap.FetchedAt = time.Unix(1700000000, 0)
	snap.Devices["hub"] = domain.RemoDevice{Id: "hub", Name: "Hub", NewestEvents: map[natureremo.SensorKind]natureremo.SensorEvent{
		natureremo.SENSOR_KIND_TEMPERATURE: {Value: 21.5, CreatedAt: time.Unix(1699999990, 0)},
	}}
	snap.Appliances["meter"] = domain.Appliance{Id: "meter", Nickname: "Meter", Type: natureremo.APPLIANCE_TYPE_SMART_METER,
		SmartMeter: &natureremo.SmartMeter{EchonetProperties: []natureremo.EchonetProperty{{Epc: 231, Value: "450"}}}}
	snap.Appliances["light"] = domain.Appliance{Id: "light", Nickname: "Lamp", Type: natureremo.APPLIANCE_TYPE_LIGHT,
		Light: &natureremo.Light{State: natureremo.LightState{Power: "off"}}}
	snap.Appliances["tv"] = domain.Appliance{Id: "tv", Type: natureremo.APPLIANCE_TYPE_TV}
	return snap
}

func TestSnapshotPoints(t *testing.T) {
	points := SnapshotPoints(historySnapshot())
	require.Len(t, points, 3)

	lines := map[string]string{}
	for _, p := range points {
		lines[p.Name()] = write.PointToLineProtocol(p, time.Second)
	}
	assert.Contains(t, lines[MEASUREMENT_DEVICE_SENSOR], "kind=te")
	assert.Contains(t, lines[MEASUREMENT_DEVICE_SENSOR], "value=21.5")
	assert.Contains(t, lines[MEASUREMENT_DEVICE_SENSOR], "1699999990")
	assert.Contains(t, lines[MEASUREMENT_SMART_METER], "instant_power_w=450")
	assert.NotContains(t, lines[MEASUREMENT_SMART_METER], "cumulative_energy_kwh")
	assert.Contains(t, lines[MEASUREMENT_APPLIANCE_POWER], "on=false")

	assert.Empty(t, SnapshotPoints(nil))
}

func TestRecorder(t *testing.T) {
	w := newFakeWriter()
	r := NewRecorder(w, zap.NewNop())

	r.Record(historySnapshot())
	assert.Equal(t, int64(3), r.Written())
	assert.True(t, r.LastError().IsZero())

	r.Detach()
	assert.Equal(t, 1, w.flushed)
}
