package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	adactor "github.com/berfenger/remo2mqtt/internal/adapter/actor"
	"github.com/berfenger/remo2mqtt/internal/core/coordinator"
	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/core/entity"
	"github.com/berfenger/remo2mqtt/internal/mqtt"
	"github.com/berfenger/remo2mqtt/internal/notice"
	"github.com/berfenger/remo2mqtt/internal/util"
	"github.com/berfenger/remo2mqtt/pkg/natureremo"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticFetcher struct{}

func (staticFetcher) FetchSnapshot(context.Context) (*domain.Snapshot, error) {
	snap := domain.EmptySnapshot()
	snap.Devices["hub-1"] = domain.RemoDevice{Id: "hub-1", Name: "Hub", NewestEvents: map[natureremo.SensorKind]natureremo.SensorEvent{
		natureremo.SENSOR_KIND_TEMPERATURE: {Value: 21.5},
	}}
	snap.Appliances["ac-1"] = domain.Appliance{Id: "ac-1", Nickname: "AC", Type: natureremo.APPLIANCE_TYPE_AC,
		Device: domain.RemoDevice{Id: "hub-1"}, Settings: &natureremo.AirconSettings{Button: ""}}
	snap.FetchedAt = time.Now()
	return snap, nil
}

type powerCall struct {
	applianceId string
	on          bool
}

type recordingPower struct {
	mu    sync.Mutex
	calls []powerCall
}

func (p *recordingPower) SetPower(_ context.Context, applianceId string, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, powerCall{applianceId, on})
	return nil
}

func (p *recordingPower) Calls() []powerCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]powerCall(nil), p.calls...)
}

func TestMasterActor(t *testing.T) {
	as := actor.NewActorSystem()
	root := as.Root
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	coord, err := coordinator.New(as, staticFetcher{}, coordinator.Options{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, coord.Start())
	defer coord.Stop()
	_, err = coord.Refresh(context.Background())
	require.NoError(t, err)

	presenter, err := notice.NewPresenter(notice.NewStore(afero.NewMemMapFs(), "notice.json"), true, logger)
	require.NoError(t, err)
	require.NoError(t, presenter.Start(context.Background(), time.Hour))
	defer presenter.Stop()

	power := &recordingPower{}
	deps := Dependencies{
		Source:      coord,
		Power:       power,
		Notice:      presenter,
		Coordinator: coord.PID(),
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, deps, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, logger)
	})
	pid, err := root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		res, err := root.RequestFuture(pid, domain.ActorHealthRequest{}, 3*time.Second).Result()
		if err != nil {
			return false
		}
		return res.(domain.ActorHealthResponse).Healthy
	}, 10*time.Second, 100*time.Millisecond, "master becomes healthy")

	hadPID := as.NewLocalPID(domain.ACTOR_ID_MASTER + "/" + domain.ACTOR_ID_HA_DISCOVERY)
	res, err := root.RequestFuture(hadPID, getEntities{}, time.Second).Result()
	require.NoError(t, err)
	entities := res.(*entity.Set)
	require.Len(t, entities.Switches, 1)
	require.Len(t, entities.Sensors, 1)

	// MQTT switch command routed through master
	root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: entities.Switches[0].Id,
		Command:  mqtt.COMMAND_SWITCH,
		Payload:  mqtt.MQTT_PAYLOAD_OFF,
	}})
	require.Eventually(t, func() bool { return len(power.Calls()) == 1 }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, powerCall{"ac-1", false}, power.Calls()[0])

	// HTTP style request
	res, err = root.RequestFuture(pid, domain.AppliancePowerRequest{ApplianceId: "ac-1", On: true}, 3*time.Second).Result()
	require.NoError(t, err)
	assert.False(t, res.(domain.AppliancePowerResponse).HasResponseError())
	assert.Equal(t, powerCall{"ac-1", true}, power.Calls()[1])

	// dismiss button
	root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.BUTTON_ID_NOTICE_DISMISS,
		Command:  mqtt.COMMAND_BUTTON,
		Payload:  mqtt.MQTT_PAYLOAD_PRESS,
	}})
	select {
	case <-presenter.Done():
		assert.Equal(t, notice.SOURCE_BUTTON, presenter.Result().Source)
	case <-time.After(2 * time.Second):
		t.Fatal("notice was not acknowledged")
	}

	require.NoError(t, root.StopFuture(pid).Wait())
}
