package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

type refreshTick struct{}

type fetchResult struct {
	generation uint64
	snapshot   *domain.Snapshot
	err        error
	took       time.Duration
}

type coordinatorActor struct {
	c           *Coordinator
	behavior    actor.Behavior
	scheduler   *scheduler.TimerScheduler
	cancelTicks scheduler.CancelFunc
	cancelFetch context.CancelFunc
	waiters     []*actor.PID
	logger      *zap.Logger
}

func newCoordinatorActor(c *Coordinator) *coordinatorActor {
	act := &coordinatorActor{
		c:        c,
		behavior: actor.NewBehavior(),
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_COORDINATOR, c.logger),
	}
	act.behavior.Become(act.IdleReceive)
	return act
}

func (state *coordinatorActor) Receive(ctx actor.Context) {
	state.behavior.Receive(ctx)
}

func (state *coordinatorActor) IdleReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("coordinator@idle started", zap.Duration("interval", state.c.opts.Interval))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.cancelTicks = state.scheduler.SendRepeatedly(state.c.opts.Interval, state.c.opts.Interval, ctx.Self(), refreshTick{})
	case refreshTick:
		state.logger.Debug("coordinator@idle tick")
		state.startFetch(ctx)
	case domain.RefreshRequest:
		state.logger.Debug("coordinator@idle RefreshRequest")
		state.addWaiter(ctx, msg)
		state.startFetch(ctx)
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, "idle")
	case fetchResult:
		state.logger.Debug("coordinator@idle drop stale result", zap.Uint64("generation", msg.generation))
	case *actor.Stopping, *actor.Restarting:
		state.stop(ctx)
	}
}

func (state *coordinatorActor) RefreshingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case refreshTick:
		state.logger.Debug("coordinator@refreshing drop tick")
	case domain.RefreshRequest:
		state.logger.Debug("coordinator@refreshing join in-flight refresh")
		state.addWaiter(ctx, msg)
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, "refreshing")
	case fetchResult:
		if msg.generation != state.c.generation.Load() {
			state.logger.Debug("coordinator@refreshing drop stale result", zap.Uint64("generation", msg.generation))
			return
		}
		state.cancelFetch = nil
		state.commit(ctx, msg)
		state.behavior.UnbecomeStacked()
	case *actor.Stopping, *actor.Restarting:
		state.stop(ctx)
	}
}

func (state *coordinatorActor) startFetch(ctx actor.Context) {
	generation := state.c.generation.Add(1)
	fetcher := state.c.fetcher
	timeout := state.c.opts.FetchTimeout

	fetchCtx, cancel := context.WithTimeout(context.Background(), timeout)
	state.cancelFetch = cancel
	start := time.Now()

	actorutil.NewBackgroundTask(ctx, func() (*fetchResult, error) {
		defer cancel()
		snapshot, err := fetcher.FetchSnapshot(fetchCtx)
		return &fetchResult{
			generation: generation,
			snapshot:   snapshot,
			err:        err,
			took:       time.Since(start),
		}, nil
	}).WithTimeout(timeout + time.Second).Recover(func(err error) fetchResult {
		return fetchResult{
			generation: generation,
			err:        err,
			took:       time.Since(start),
		}
	}).PipeTo(ctx.Self())

	state.behavior.BecomeStacked(state.RefreshingReceive)
}

// commit swaps the snapshot, records the outcome, notifies listeners and
// finally replies to waiters, in that order.
func (state *coordinatorActor) commit(ctx actor.Context, result fetchResult) {
	now := time.Now()
	prev := state.c.LastOutcome()

	var outcome domain.RefreshOutcome
	if result.err == nil && result.snapshot != nil {
		state.c.snapshot.Store(result.snapshot)
		outcome = domain.RefreshOutcome{Success: true, Time: now, LastSuccess: now}
		state.c.outcome.Store(&outcome)
		state.logger.Debug("coordinator: refresh committed",
			zap.Int("appliances", len(result.snapshot.Appliances)),
			zap.Int("devices", len(result.snapshot.Devices)),
			zap.Duration("took", result.took))
		if obs := state.c.opts.Observer; obs != nil {
			obs.RefreshSucceeded(result.took, result.snapshot)
		}
		state.c.events.Publish(domain.SnapshotUpdated{Snapshot: result.snapshot})
	} else {
		err := result.err
		if err == nil {
			err = errors.New("fetch returned no snapshot")
		}
		outcome = domain.RefreshOutcome{Success: false, Err: err, Time: now, LastSuccess: prev.LastSuccess}
		state.c.outcome.Store(&outcome)
		state.logger.Warn("coordinator: refresh failed", zap.Error(err), zap.Duration("took", result.took))
		if obs := state.c.opts.Observer; obs != nil {
			obs.RefreshFailed(result.took, err)
		}
	}

	state.reply(ctx, domain.RefreshResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: outcome.Err},
		Outcome:            outcome,
	})
}

func (state *coordinatorActor) addWaiter(ctx actor.Context, req domain.RefreshRequest) {
	if pid := actorutil.ForRequest(req).ReplyTo(ctx); pid != nil {
		state.waiters = append(state.waiters, pid)
	}
}

func (state *coordinatorActor) reply(ctx actor.Context, resp domain.RefreshResponse) {
	for _, pid := range state.waiters {
		ctx.Send(pid, resp)
	}
	state.waiters = nil
}

func (state *coordinatorActor) respondHealth(ctx actor.Context, stateName string) {
	outcome := state.c.LastOutcome()
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_COORDINATOR,
		Healthy: outcome.Success,
		State:   stateName,
	}
	if outcome.Err != nil {
		resp.State = fmt.Sprintf("%s: %v", stateName, outcome.Err)
	}
	ctx.Respond(resp)
}

func (state *coordinatorActor) stop(ctx actor.Context) {
	state.logger.Debug("coordinator: stopping")
	if state.cancelTicks != nil {
		state.cancelTicks()
		state.cancelTicks = nil
	}
	if state.cancelFetch != nil {
		state.cancelFetch()
		state.cancelFetch = nil
	}
	// anything still in flight belongs to a dead generation
	state.c.generation.Add(1)
	state.reply(ctx, domain.RefreshResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: ErrStopped},
		Outcome:            state.c.LastOutcome(),
	})
}
