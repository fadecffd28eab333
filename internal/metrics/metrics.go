package metrics

import (
	"time"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/core/entity"

	"github.com/prometheus/client_golang/prometheus"
)

const NAMESPACE = "remo2mqtt"

// Metrics observes coordinator refreshes and mirrors the latest snapshot values.
type Metrics struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	lastSuccess     prometheus.Gauge
	appliances      prometheus.Gauge
	devices         prometheus.Gauge
	deviceSensor    *prometheus.GaugeVec
	instantPower    *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: NAMESPACE,
				Name:      "refresh_total",
				Help:      "Snapshot refreshes by result.",
			},
			[]string{"result"},
		),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: NAMESPACE,
				Name:      "refresh_duration_seconds",
				Help:      "Time spent fetching a snapshot.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: NAMESPACE,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful refresh.",
			},
		),
		appliances: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: NAMESPACE,
				Name:      "appliances",
				Help:      "Appliances in the current snapshot.",
			},
		),
		devices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: NAMESPACE,
				Name:      "devices",
				Help:      "Devices in the current snapshot.",
			},
		),
		deviceSensor: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: NAMESPACE,
				Name:      "device_sensor_value",
				Help:      "Newest sensor event value reported by a Remo device.",
			},
			[]string{"id", "name", "kind"},
		),
		instantPower: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: NAMESPACE,
				Name:      "instant_power_watts",
				Help:      "Instantaneous power reported by a smart meter.",
			},
			[]string{"id", "nickname"},
		),
	}
	reg.MustRegister(m.refreshTotal)
	reg.MustRegister(m.refreshDuration)
	reg.MustRegister(m.lastSuccess)
	reg.MustRegister(m.appliances)
	reg.MustRegister(m.devices)
	reg.MustRegister(m.deviceSensor)
	reg.MustRegister(m.instantPower)
	return m
}

func (m *Metrics) RefreshSucceeded(took time.Duration, snapshot *domain.Snapshot) {
	m.refreshTotal.WithLabelValues("success").Inc()
	m.refreshDuration.Observe(took.Seconds())
	m.lastSuccess.SetToCurrentTime()
	m.appliances.Set(float64(len(snapshot.Appliances)))
	m.devices.Set(float64(len(snapshot.Devices)))

	m.deviceSensor.Reset()
	for _, dev := range snapshot.Devices {
		for kind, ev := range dev.NewestEvents {
			m.deviceSensor.WithLabelValues(dev.Id, dev.Name, string(kind)).Set(ev.Value)
		}
	}
	m.instantPower.Reset()
	for _, appliance := range snapshot.Appliances {
		if value, ok := entity.InstantPower(appliance.Id)(snapshot); ok {
			m.instantPower.WithLabelValues(appliance.Id, appliance.Nickname).Set(value)
		}
	}
}

func (m *Metrics) RefreshFailed(took time.Duration, _ error) {
	m.refreshTotal.WithLabelValues("failure").Inc()
	m.refreshDuration.Observe(took.Seconds())
}
