package entity

import (
	"sync"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/core/port"

	"github.com/asynkron/protoactor-go/eventstream"
)

type Identifiable interface {
	Identity() Identity
}

// Snapshotted renders state events from a snapshot without keeping any of it.
type Snapshotted interface {
	Render(snap *domain.Snapshot) []any
}

type Entity interface {
	Identifiable
	Snapshotted
	Attach(source port.Snapshotter, sink port.Sink)
	Detach()
	Update()
}

type Identity struct {
	// UniqueId is derived from cloud ids: "{appliance}" or "{device}-te".
	UniqueId string
	// Id is the MQTT safe form of UniqueId.
	Id     string
	Name   string
	Device domain.Device
}

func NewIdentity(uniqueId, name string, device domain.Device) Identity {
	return Identity{
		UniqueId: uniqueId,
		Id:       domain.TopicId(uniqueId),
		Name:     name,
		Device:   device,
	}
}

func (i Identity) Identity() Identity {
	return i
}

// binding ties an entity to a snapshot source. It never polls: state is pushed
// by the source after each committed refresh.
type binding struct {
	mu     sync.Mutex
	source port.Snapshotter
	sub    *eventstream.Subscription
}

func (b *binding) attach(source port.Snapshotter, sink port.Sink, render func(*domain.Snapshot) []any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		b.source.RemoveListener(b.sub)
	}
	b.source = source
	b.sub = source.AddListener(func(snap *domain.Snapshot) {
		publishAll(sink, render(snap))
	})
	publishAll(sink, render(source.Get()))
}

func (b *binding) detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		b.source.RemoveListener(b.sub)
		b.sub = nil
	}
}

func (b *binding) update() {
	b.mu.Lock()
	source := b.source
	b.mu.Unlock()
	if source != nil {
		source.RequestRefresh()
	}
}

func publishAll(sink port.Sink, events []any) {
	for _, evt := range events {
		sink.Publish(evt)
	}
}
