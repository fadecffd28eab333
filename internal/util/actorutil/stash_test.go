package actorutil

import (
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type release struct{}

type stashingActor struct {
	stash *Stash
	ready bool
}

func (a *stashingActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case release:
		a.ready = true
		ctx.Respond(a.stash.Len())
		a.stash.UnstashAll(ctx)
	case string:
		if !a.ready {
			a.stash.Stash(ctx, msg)
			return
		}
		ctx.Respond("echo " + msg)
	}
}

func TestStashKeepsSender(t *testing.T) {
	as := actor.NewActorSystem()
	defer as.Shutdown()
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &stashingActor{stash: &Stash{}}
	}))

	first := as.Root.RequestFuture(pid, "a", time.Second)
	second := as.Root.RequestFuture(pid, "b", time.Second)

	pending, err := as.Root.RequestFuture(pid, release{}, time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	res, err := first.Result()
	require.NoError(t, err)
	assert.Equal(t, "echo a", res)
	res, err = second.Result()
	require.NoError(t, err)
	assert.Equal(t, "echo b", res)
}
