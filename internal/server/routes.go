package server

import (
	"net/http"
	"time"

	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/notice"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type outcomeResponse struct {
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
	Time        *time.Time `json:"time,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

type snapshotResponse struct {
	Snapshot *domain.Snapshot `json:"snapshot"`
	Outcome  outcomeResponse  `json:"outcome"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.GET("/snapshot", s.SnapshotHandler)
	api.POST("/refresh", s.RefreshHandler)
	api.POST("/appliances/:id/power/:state", s.AppliancePowerHandler)
	api.POST("/notice/ack", s.NoticeAckHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) SnapshotHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, snapshotResponse{
		Snapshot: s.snapshots.Get(),
		Outcome:  toOutcomeResponse(s.snapshots.LastOutcome()),
	})
}

func (s *Server) RefreshHandler(c echo.Context) error {
	outcome, err := s.snapshots.Refresh(c.Request().Context())
	if err != nil {
		resp := toOutcomeResponse(outcome)
		resp.Error = err.Error()
		return c.JSON(http.StatusBadGateway, resp)
	}
	return c.JSON(http.StatusOK, toOutcomeResponse(outcome))
}

func (s *Server) AppliancePowerHandler(c echo.Context) error {
	var on bool
	switch c.Param("state") {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "state must be on or off")
	}

	res, err := s.rootContext.RequestFuture(s.masterActor, domain.AppliancePowerRequest{
		ApplianceId: c.Param("id"),
		On:          on,
	}, 20*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	}
	if resp, ok := res.(domain.AppliancePowerResponse); ok && resp.HasResponseError() {
		return echo.NewHTTPError(http.StatusBadGateway, resp.GetResponseError().Error())
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) NoticeAckHandler(c echo.Context) error {
	if s.notice == nil || !s.notice.Ack(notice.SOURCE_API) {
		return c.NoContent(http.StatusConflict)
	}
	return c.NoContent(http.StatusAccepted)
}

func toOutcomeResponse(outcome domain.RefreshOutcome) outcomeResponse {
	resp := outcomeResponse{Success: outcome.Success}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}
	if !outcome.Time.IsZero() {
		resp.Time = &outcome.Time
	}
	if !outcome.LastSuccess.IsZero() {
		resp.LastSuccess = &outcome.LastSuccess
	}
	return resp
}
