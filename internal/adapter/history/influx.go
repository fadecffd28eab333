package history

import (
	"sync"
	"time"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/core/entity"
	"github.com/berfenger/remo2mqtt/internal/core/port"
	"github.com/berfenger/remo2mqtt/pkg/natureremo"

	"github.com/asynkron/protoactor-go/eventstream"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const (
	MEASUREMENT_DEVICE_SENSOR   = "remo_device_sensor"
	MEASUREMENT_SMART_METER     = "remo_smart_meter"
	MEASUREMENT_APPLIANCE_POWER = "remo_appliance_power"
)

// PointWriter is the part of the non blocking influx WriteAPI the recorder uses.
type PointWriter interface {
	WritePoint(point *write.Point)
	Flush()
	Errors() <-chan error
}

// Recorder writes every committed snapshot to InfluxDB.
type Recorder struct {
	api    PointWriter
	logger *zap.Logger

	mu      sync.RWMutex
	source  port.Snapshotter
	sub     *eventstream.Subscription
	lastErr time.Time
	written int64
}

func NewRecorder(w PointWriter, logger *zap.Logger) *Recorder {
	r := &Recorder{
		api:    w,
		logger: logger,
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				r.mu.Lock()
				r.lastErr = time.Now()
				r.mu.Unlock()
				logger.Warn("history: influx write error", zap.Error(err))
			}
		}
	}()
	return r
}

func (r *Recorder) Attach(source port.Snapshotter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = source
	r.sub = source.AddListener(r.Record)
}

func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		r.source.RemoveListener(r.sub)
		r.sub = nil
	}
	r.api.Flush()
}

// Record queues the points of snap. Writes are batched by the influx client.
func (r *Recorder) Record(snap *domain.Snapshot) {
	points := SnapshotPoints(snap)
	for _, p := range points {
		r.api.WritePoint(p)
	}
	r.mu.Lock()
	r.written += int64(len(points))
	r.mu.Unlock()
	r.logger.Debug("history: snapshot queued", zap.Int("points", len(points)))
}

func (r *Recorder) Written() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.written
}

// LastError is zero when no write ever failed.
func (r *Recorder) LastError() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func SnapshotPoints(snap *domain.Snapshot) []*write.Point {
	if snap == nil {
		return nil
	}
	ts := snap.FetchedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	var points []*write.Point
	for _, dev := range snap.Devices {
		for kind, ev := range dev.NewestEvents {
			at := ev.CreatedAt
			if at.IsZero() {
				at = ts
			}
			points = append(points, influxdb2.NewPoint(MEASUREMENT_DEVICE_SENSOR,
				map[string]string{"id": dev.Id, "name": dev.Name, "kind": string(kind)},
				map[string]interface{}{"value": ev.Value},
				at))
		}
	}

	for _, appliance := range snap.Appliances {
		tags := map[string]string{"id": appliance.Id, "nickname": appliance.Nickname}
		switch appliance.Type {
		case natureremo.APPLIANCE_TYPE_SMART_METER:
			fields := map[string]interface{}{}
			if power, ok := entity.InstantPower(appliance.Id)(snap); ok {
				fields["instant_power_w"] = power
			}
			if energy, ok := entity.CumulativeEnergy(appliance.Id)(snap); ok {
				fields["cumulative_energy_kwh"] = energy
			}
			if len(fields) > 0 {
				points = append(points, influxdb2.NewPoint(MEASUREMENT_SMART_METER, tags, fields, ts))
			}
		case natureremo.APPLIANCE_TYPE_AC:
			if on, ok := entity.AirconPower(appliance.Id)(snap); ok {
				points = append(points, influxdb2.NewPoint(MEASUREMENT_APPLIANCE_POWER, tags, map[string]interface{}{"on": on}, ts))
			}
		case natureremo.APPLIANCE_TYPE_LIGHT:
			if on, ok := entity.LightPower(appliance.Id)(snap); ok {
				points = append(points, influxdb2.NewPoint(MEASUREMENT_APPLIANCE_POWER, tags, map[string]interface{}{"on": on}, ts))
			}
		}
	}
	return points
}
