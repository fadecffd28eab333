package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// Stash defers messages while an actor is in a state that cannot serve them.
// Replayed messages keep their sender so Respond still works.
type Stash struct {
	pending []stashed
}

type stashed struct {
	msg    any
	sender *actor.PID
}

func (s *Stash) Stash(ctx actor.Context, msg any) {
	s.pending = append(s.pending, stashed{msg: msg, sender: ctx.Sender()})
}

func (s *Stash) Len() int {
	return len(s.pending)
}

func (s *Stash) UnstashAll(ctx actor.Context) {
	for _, p := range s.pending {
		ctx.RequestWithCustomSender(ctx.Self(), p.msg, p.sender)
	}
	s.pending = nil
}

// UnstashOldest replays one message, used by states that handle one request at a time.
func (s *Stash) UnstashOldest(ctx actor.Context) {
	if len(s.pending) == 0 {
		return
	}
	first := s.pending[0]
	s.pending = s.pending[1:]
	ctx.RequestWithCustomSender(ctx.Self(), first.msg, first.sender)
}
