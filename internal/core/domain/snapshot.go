package domain

import (
	"time"

	"github.com/berfenger/remo2mqtt/pkg/natureremo"
)

type (
	Snapshot        = natureremo.Snapshot
	RemoDevice      = natureremo.Device
	Appliance       = natureremo.Appliance
	SmartMeter      = natureremo.SmartMeter
	EchonetProperty = natureremo.EchonetProperty
	SensorKind      = natureremo.SensorKind
	DataShapeError  = natureremo.DataShapeError
)

func EmptySnapshot() *Snapshot {
	return natureremo.EmptySnapshot()
}

// RefreshOutcome records the result of the latest refresh attempt.
type RefreshOutcome struct {
	Success     bool
	Err         error
	Time        time.Time
	LastSuccess time.Time
}

func (o RefreshOutcome) Attempted() bool {
	return !o.Time.IsZero()
}

// SnapshotUpdated is published on the event stream after every committed refresh.
type SnapshotUpdated struct {
	Snapshot *Snapshot
}
