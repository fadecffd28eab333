package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/metrics"
	"github.com/berfenger/remo2mqtt/internal/notice"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSnapshots struct {
	snapshot *domain.Snapshot
	outcome  domain.RefreshOutcome
	err      error
}

func (f *fakeSnapshots) Get() *domain.Snapshot              { return f.snapshot }
func (f *fakeSnapshots) LastOutcome() domain.RefreshOutcome { return f.outcome }
func (f *fakeSnapshots) Refresh(context.Context) (domain.RefreshOutcome, error) {
	return f.outcome, f.err
}

func fakeMaster(healthy bool, powerErr error) actor.ReceiveFunc {
	return func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.ActorHealthRequest:
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy})
		case domain.AppliancePowerRequest:
			if msg.ApplianceId == "ac-1" {
				ctx.Respond(domain.AppliancePowerResponse{})
				return
			}
			ctx.Respond(domain.AppliancePowerResponse{ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: powerErr}})
		}
	}
}

func newTestServer(t *testing.T, snapshots Snapshots, presenter *notice.Presenter) http.Handler {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	master := as.Root.Spawn(actor.PropsFromFunc(fakeMaster(true, errors.New("unknown appliance"))))

	reg := prometheus.NewRegistry()
	metrics.NewMetrics(reg).RefreshFailed(time.Second, errors.New("x"))

	s := &Server{
		rootContext: as.Root,
		masterActor: master,
		snapshots:   snapshots,
		gatherer:    reg,
		notice:      presenter,
	}
	return s.RegisterRoutes()
}

func do(handler http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	handler := newTestServer(t, &fakeSnapshots{snapshot: domain.EmptySnapshot()}, nil)

	rec := do(handler, http.MethodGet, "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	rec = do(handler, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `remo2mqtt_refresh_total{result="failure"} 1`)
}

func TestSnapshotRoutes(t *testing.T) {
	now := time.Now()
	snap := domain.EmptySnapshot()
	snap.Appliances["ac-1"] = domain.Appliance{Id: "ac-1", Nickname: "AC"}
	snapshots := &fakeSnapshots{
		snapshot: snap,
		outcome:  domain.RefreshOutcome{Success: true, Time: now, LastSuccess: now},
	}
	handler := newTestServer(t, snapshots, nil)

	rec := do(handler, http.MethodGet, "/api/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	var body snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Outcome.Success)
	assert.Equal(t, "AC", body.Snapshot.Appliances["ac-1"].Nickname)

	rec = do(handler, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)

	snapshots.err = errors.New("cloud down")
	snapshots.outcome = domain.RefreshOutcome{Success: false, Err: snapshots.err, LastSuccess: now}
	rec = do(handler, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "cloud down")
}

func TestAppliancePowerRoute(t *testing.T) {
	handler := newTestServer(t, &fakeSnapshots{snapshot: domain.EmptySnapshot()}, nil)

	assert.Equal(t, http.StatusAccepted, do(handler, http.MethodPost, "/api/appliances/ac-1/power/on").Code)
	assert.Equal(t, http.StatusBadRequest, do(handler, http.MethodPost, "/api/appliances/ac-1/power/maybe").Code)
	assert.Equal(t, http.StatusBadGateway, do(handler, http.MethodPost, "/api/appliances/other/power/off").Code)
}

func TestNoticeAckRoute(t *testing.T) {
	presenter, err := notice.NewPresenter(notice.NewStore(afero.NewMemMapFs(), "notice.json"), true, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, presenter.Start(context.Background(), time.Hour))
	defer presenter.Stop()

	handler := newTestServer(t, &fakeSnapshots{snapshot: domain.EmptySnapshot()}, presenter)

	assert.Equal(t, http.StatusAccepted, do(handler, http.MethodPost, "/api/notice/ack").Code)
	<-presenter.Done()
	assert.Equal(t, notice.SOURCE_API, presenter.Result().Source)
	assert.Equal(t, http.StatusConflict, do(handler, http.MethodPost, "/api/notice/ack").Code)

	handler = newTestServer(t, &fakeSnapshots{snapshot: domain.EmptySnapshot()}, nil)
	assert.Equal(t, http.StatusConflict, do(handler, http.MethodPost, "/api/notice/ack").Code)
}
