package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/remo2mqtt/internal/config"
	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/core/entity"
	"github.com/berfenger/remo2mqtt/internal/core/port"
	"github.com/berfenger/remo2mqtt/internal/notice"
	"github.com/berfenger/remo2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const POWER_COMMAND_TIMEOUT = 15 * time.Second

// HADiscoveryActor owns the entities derived from the snapshot. It announces
// them to Home Assistant, binds them to the coordinator and handles commands.
type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	stash     *actorutil.Stash
	mqttActor *actor.PID
	source    port.Snapshotter
	sink      port.Sink
	power     port.PowerControl
	notice    *notice.Presenter
	bridge    domain.Device
	entities  *entity.Set
	sub       *eventstream.Subscription
	logger    *zap.Logger
}

type snapshotCommitted struct {
	snapshot *domain.Snapshot
}

type powerCommandResult struct {
	applianceId string
	replyTo     *actor.PID
	err         error
}

type getEntities struct{}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, deps Dependencies, sink port.Sink, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		source:    deps.Source,
		sink:      sink,
		power:     deps.Power,
		notice:    deps.Notice,
		bridge:    domain.BridgeDevice(config.MQTT.BaseTopic),
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// entities are only bound once MQTT is up
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 15*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting, *actor.Stopping:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(errors.New("MQTT actor is not healthy"))
		}
		state.setup(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.logger.Debug("hadiscovery@healthcheck unstash", zap.Int("pending", state.stash.Len()))
		state.stash.UnstashAll(ctx)
	case *actor.Restarting, *actor.Stopping:
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   fmt.Sprintf("%d sensors, %d switches", len(state.entities.Sensors), len(state.entities.Switches)),
		})
	case domain.SwitchCommandRequest:
		state.logger.Debug("hadiscovery@default SwitchCommandRequest", zap.String("switch", msg.SwitchId), zap.Bool("on", msg.On))
		sw, ok := state.entities.Switch(msg.SwitchId)
		if !ok {
			state.logger.Warn("hadiscovery@default unknown switch", zap.String("switch", msg.SwitchId))
			return
		}
		state.setPower(ctx, sw.ApplianceId, msg.On, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.AppliancePowerRequest:
		state.logger.Debug("hadiscovery@default AppliancePowerRequest", zap.String("appliance", msg.ApplianceId), zap.Bool("on", msg.On))
		state.setPower(ctx, msg.ApplianceId, msg.On, actorutil.ForRequest(msg).ReplyTo(ctx))
	case powerCommandResult:
		if msg.err != nil {
			state.logger.Error("hadiscovery@default power command failed", zap.String("appliance", msg.applianceId), zap.Error(msg.err))
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, domain.AppliancePowerResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: msg.err},
			})
		}
	case domain.ButtonPressRequest:
		state.logger.Debug("hadiscovery@default ButtonPressRequest", zap.String("button", msg.ButtonId))
		if msg.ButtonId == domain.BUTTON_ID_NOTICE_DISMISS && state.notice != nil {
			state.notice.Ack(notice.SOURCE_BUTTON)
		}
	case notice.Ack:
		state.logger.Info("hadiscovery@default notice acknowledged", zap.String("source", string(msg.Source)))
		if state.config.MQTT.HADiscoveryEnable {
			ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
				Sensors: []domain.GenericSensor{domain.NoticeSensor(state.bridge)},
				Buttons: []domain.GenericButton{domain.NoticeDismissButton(state.bridge)},
				Remove:  true,
			})
		}
	case snapshotCommitted:
		next := entity.Build(msg.snapshot, state.bridge)
		if next.SameAs(state.entities) {
			return
		}
		state.logger.Info("hadiscovery@default entity set changed",
			zap.Int("sensors", len(next.Sensors)), zap.Int("switches", len(next.Switches)))
		state.entities.DetachAll()
		if stale := state.entities.Missing(next); state.config.MQTT.HADiscoveryEnable && len(stale.All()) > 0 {
			ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
				Sensors:  stale.SensorDescriptors(),
				Switches: stale.SwitchDescriptors(),
				Remove:   true,
			})
		}
		state.bind(ctx, next)
	case getEntities:
		ctx.Respond(state.entities)
	case *actor.Restarting, *actor.Stopping:
		state.logger.Debug("hadiscovery@default detach entities")
		state.source.RemoveListener(state.sub)
		state.entities.DetachAll()
	}
}

// setup announces the bridge, binds the entities of the current snapshot and
// follows later snapshots for appliances or devices that come and go.
func (state *HADiscoveryActor) setup(ctx actor.Context) {
	noticeActive := state.notice != nil && state.notice.Active()

	if state.config.MQTT.HADiscoveryEnable {
		bridgeDevice := state.bridge
		bridgeDevice.ViaDevice = ""
		sensors := domain.BridgeSensors(bridgeDevice)
		var buttons []domain.GenericButton
		if noticeActive {
			sensors = append(sensors, domain.NoticeSensor(bridgeDevice))
			buttons = append(buttons, domain.NoticeDismissButton(bridgeDevice))
		}
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: sensors,
			Buttons: buttons,
		})
	}

	state.bind(ctx, entity.Build(state.source.Get(), state.bridge))

	self := ctx.Self()
	root := ctx.ActorSystem().Root
	state.sub = state.source.AddListener(func(snap *domain.Snapshot) {
		root.Send(self, snapshotCommitted{snapshot: snap})
	})

	if noticeActive {
		state.sink.Publish(domain.TextSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_NOTICE},
			Value:                  state.notice.Text(),
		})
		state.notice.OnAck(func(ack notice.Ack) {
			root.Send(self, ack)
		})
	}
}

func (state *HADiscoveryActor) bind(ctx actor.Context, entities *entity.Set) {
	state.entities = entities
	state.logger.Info("hadiscovery: entities built",
		zap.Int("sensors", len(entities.Sensors)), zap.Int("switches", len(entities.Switches)))

	if state.config.MQTT.HADiscoveryEnable && len(entities.All()) > 0 {
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors:  entities.SensorDescriptors(),
			Switches: entities.SwitchDescriptors(),
		})
	}
	entities.AttachAll(state.source, state.sink)
}

func (state *HADiscoveryActor) setPower(ctx actor.Context, applianceId string, on bool, replyTo *actor.PID) {
	power := state.power
	actorutil.NewBackgroundTask(ctx, func() (*powerCommandResult, error) {
		cmdCtx, cancel := context.WithTimeout(context.Background(), POWER_COMMAND_TIMEOUT)
		defer cancel()
		return &powerCommandResult{
			applianceId: applianceId,
			replyTo:     replyTo,
			err:         power.SetPower(cmdCtx, applianceId, on),
		}, nil
	}).WithTimeout(POWER_COMMAND_TIMEOUT + time.Second).Recover(func(err error) powerCommandResult {
		return powerCommandResult{applianceId: applianceId, replyTo: replyTo, err: err}
	}).PipeTo(ctx.Self())
}
