package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/berfenger/remo2mqtt/internal/config"
	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const DEFAULT_FETCH_TIMEOUT = 10 * time.Second

var (
	ErrNotStarted = errors.New("coordinator not started")
	ErrStopped    = errors.New("coordinator stopped")
)

// Observer is notified of every refresh result, inside the coordinator actor.
type Observer interface {
	RefreshSucceeded(took time.Duration, snapshot *domain.Snapshot)
	RefreshFailed(took time.Duration, err error)
}

type Listener = eventstream.Subscription

type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Observer     Observer
	EventStream  *eventstream.EventStream
	Logger       *zap.Logger
}

// Coordinator owns the shared snapshot. All refreshes run through a single
// actor, reads go straight to an atomic pointer.
type Coordinator struct {
	system  *actor.ActorSystem
	fetcher port.SnapshotFetcher
	opts    Options
	events  *eventstream.EventStream
	logger  *zap.Logger

	snapshot atomic.Pointer[domain.Snapshot]
	outcome  atomic.Pointer[domain.RefreshOutcome]
	// bumped per fetch, survives actor restarts
	generation atomic.Uint64

	mu  sync.Mutex
	pid *actor.PID
}

func New(system *actor.ActorSystem, fetcher port.SnapshotFetcher, opts Options) (*Coordinator, error) {
	if opts.Interval == 0 {
		opts.Interval = config.DEFAULT_REFRESH_INTERVAL * time.Second
	}
	if opts.Interval%time.Second != 0 {
		return nil, fmt.Errorf("refresh interval %s is not a whole number of seconds", opts.Interval)
	}
	if err := config.ValidateRefreshInterval(int(opts.Interval / time.Second)); err != nil {
		return nil, err
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DEFAULT_FETCH_TIMEOUT
	}
	if opts.EventStream == nil {
		opts.EventStream = &eventstream.EventStream{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Coordinator{
		system:  system,
		fetcher: fetcher,
		opts:    opts,
		events:  opts.EventStream,
		logger:  opts.Logger,
	}
	c.snapshot.Store(domain.EmptySnapshot())
	c.outcome.Store(&domain.RefreshOutcome{})
	return c, nil
}

func (c *Coordinator) Interval() time.Duration {
	return c.opts.Interval
}

// Start spawns the coordinator actor. The first scheduled tick fires after one
// interval, callers wanting data right away should call Refresh.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pid != nil {
		return errors.New("coordinator already started")
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return newCoordinatorActor(c)
	})
	pid, err := c.system.Root.SpawnNamed(props, domain.ACTOR_ID_COORDINATOR)
	if err != nil {
		return err
	}
	c.pid = pid
	return nil
}

// Stop halts the actor and cancels any fetch in flight. Nothing fetched after
// this point is committed.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	pid := c.pid
	c.pid = nil
	c.mu.Unlock()
	if pid == nil {
		return
	}
	if err := c.system.Root.StopFuture(pid).Wait(); err != nil {
		c.logger.Warn("coordinator: stop", zap.Error(err))
	}
}

func (c *Coordinator) PID() *actor.PID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

// Refresh fetches a new snapshot and waits for it to be committed. A refresh
// already in flight is joined instead of starting a new one.
func (c *Coordinator) Refresh(ctx context.Context) (domain.RefreshOutcome, error) {
	pid := c.PID()
	if pid == nil {
		return domain.RefreshOutcome{}, ErrNotStarted
	}

	timeout := 2*c.opts.FetchTimeout + time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return domain.RefreshOutcome{}, ctx.Err()
		}
	}

	future := c.system.Root.RequestFuture(pid, domain.RefreshRequest{}, timeout)
	type result struct {
		msg any
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := future.Result()
		done <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return domain.RefreshOutcome{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return domain.RefreshOutcome{}, res.err
		}
		resp, ok := res.msg.(domain.RefreshResponse)
		if !ok {
			return domain.RefreshOutcome{}, fmt.Errorf("unexpected refresh reply %T", res.msg)
		}
		return resp.Outcome, resp.GetResponseError()
	}
}

// RequestRefresh asks for a refresh without waiting for it.
func (c *Coordinator) RequestRefresh() {
	if pid := c.PID(); pid != nil {
		c.system.Root.Send(pid, domain.RefreshRequest{})
	}
}

func (c *Coordinator) Get() *domain.Snapshot {
	return c.snapshot.Load()
}

func (c *Coordinator) LastOutcome() domain.RefreshOutcome {
	return *c.outcome.Load()
}

// AddListener registers fn to run after every committed refresh. fn runs on
// the coordinator actor and must not call Refresh.
func (c *Coordinator) AddListener(fn func(*domain.Snapshot)) *Listener {
	return c.events.SubscribeWithPredicate(func(evt any) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("coordinator: listener panic", zap.Any("reason", r))
			}
		}()
		fn(evt.(domain.SnapshotUpdated).Snapshot)
	}, func(evt any) bool {
		_, ok := evt.(domain.SnapshotUpdated)
		return ok
	})
}

func (c *Coordinator) RemoveListener(l *Listener) {
	if l != nil {
		c.events.Unsubscribe(l)
	}
}

var _ port.Snapshotter = (*Coordinator)(nil)
