package notice

import (
	"context"
	"sync"
	"time"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	DEFAULT_AUTO_ACK = 300 * time.Second
	TEXT             = "Configuration was migrated and now includes a refresh interval (default 60s). Adjust remo.refresh_interval if needed."
)

type Source string

const (
	SOURCE_BUTTON Source = "button"
	SOURCE_TIMER  Source = "timer"
	SOURCE_API    Source = "api"
)

type Ack struct {
	Source Source
	At     time.Time
}

// Presenter shows the migration notice until the first acknowledgement. Acks
// after the first one are ignored.
type Presenter struct {
	store  *Store
	active bool
	acks   chan Ack
	done   chan struct{}
	once   sync.Once
	result Ack
	mu     sync.Mutex
	onAck  []func(Ack)
	sched  quartz.Scheduler
	logger *zap.Logger
}

// NewPresenter is active only when a migration ran and the notice was never
// acknowledged before.
func NewPresenter(store *Store, migrated bool, logger *zap.Logger) (*Presenter, error) {
	p := &Presenter{
		store:  store,
		acks:   make(chan Ack, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	if migrated {
		acked, err := store.Acknowledged()
		if err != nil {
			return nil, err
		}
		p.active = !acked
	}
	if !p.active {
		p.once.Do(func() { close(p.done) })
	}
	return p, nil
}

func (p *Presenter) Active() bool {
	return p.active
}

func (p *Presenter) Text() string {
	return TEXT
}

// Start consumes acks and schedules the auto acknowledge job.
func (p *Presenter) Start(ctx context.Context, autoAck time.Duration) error {
	if !p.active {
		return nil
	}
	if autoAck <= 0 {
		autoAck = DEFAULT_AUTO_ACK
	}
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return err
	}
	sched.Start(ctx)
	p.sched = sched

	autoAckJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		return p.Ack(SOURCE_TIMER), nil
	})
	detail := quartz.NewJobDetail(autoAckJob, quartz.NewJobKey("notice-auto-ack"))
	if err := sched.ScheduleJob(detail, quartz.NewRunOnceTrigger(autoAck)); err != nil {
		sched.Stop()
		return err
	}

	go p.consume(ctx)
	return nil
}

func (p *Presenter) Stop() {
	if p.sched != nil {
		p.sched.Stop()
	}
}

// Ack offers an acknowledgement. It returns false when another ack is already
// pending or the notice is gone.
func (p *Presenter) Ack(source Source) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.acks <- Ack{Source: source, At: time.Now()}:
		return true
	default:
		return false
	}
}

// OnAck registers fn to run once the notice is acknowledged.
func (p *Presenter) OnAck(fn func(Ack)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAck = append(p.onAck, fn)
}

func (p *Presenter) Done() <-chan struct{} {
	return p.done
}

func (p *Presenter) Result() Ack {
	<-p.done
	return p.result
}

func (p *Presenter) consume(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case ack := <-p.acks:
		p.acknowledge(ack)
	}
}

func (p *Presenter) acknowledge(ack Ack) {
	p.once.Do(func() {
		if err := p.store.Acknowledge(); err != nil {
			p.logger.Error("notice: could not persist acknowledgement", zap.Error(err))
		}
		p.logger.Info("notice: acknowledged", zap.String("source", string(ack.Source)))
		p.result = ack
		close(p.done)

		p.mu.Lock()
		callbacks := p.onAck
		p.mu.Unlock()
		for _, fn := range callbacks {
			fn(ack)
		}
		if p.sched != nil {
			go p.sched.Stop()
		}
	})
}
