package port

import (
	"context"

	"github.com/berfenger/remo2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/eventstream"
)

type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

type ApplianceCommander interface {
	SetAirconPower(ctx context.Context, applianceId string, on bool) error
	SetLightPower(ctx context.Context, applianceId string, on bool) error
}

// Snapshotter is the read side of the snapshot coordinator.
type Snapshotter interface {
	Get() *domain.Snapshot
	RequestRefresh()
	AddListener(fn func(*domain.Snapshot)) *eventstream.Subscription
	RemoveListener(sub *eventstream.Subscription)
}

// Sink receives rendered entity events.
type Sink interface {
	Publish(evt any)
}

type PowerControl interface {
	SetPower(ctx context.Context, applianceId string, on bool) error
}
