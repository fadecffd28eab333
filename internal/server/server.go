package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/remo2mqtt/internal/config"
	"github.com/berfenger/remo2mqtt/internal/core/domain"
	"github.com/berfenger/remo2mqtt/internal/notice"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
)

// Snapshots is the coordinator surface exposed over HTTP.
type Snapshots interface {
	Get() *domain.Snapshot
	LastOutcome() domain.RefreshOutcome
	Refresh(ctx context.Context) (domain.RefreshOutcome, error)
}

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	snapshots   Snapshots
	gatherer    prometheus.Gatherer
	notice      *notice.Presenter
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	snapshots Snapshots, gatherer prometheus.Gatherer, presenter *notice.Presenter) *http.Server {
	NewServer := &Server{
		port:        cfg.Port,
		rootContext: rootContext,
		masterActor: masterActor,
		httpLog:     cfg.HttpLog,
		snapshots:   snapshots,
		gatherer:    gatherer,
		notice:      presenter,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
