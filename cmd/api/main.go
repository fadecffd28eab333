package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/remo2mqtt/internal/adapter/actor"
	"github.com/berfenger/remo2mqtt/internal/adapter/history"
	"github.com/berfenger/remo2mqtt/internal/config"
	"github.com/berfenger/remo2mqtt/internal/core/actor"
	"github.com/berfenger/remo2mqtt/internal/core/coordinator"
	"github.com/berfenger/remo2mqtt/internal/core/service"
	"github.com/berfenger/remo2mqtt/internal/metrics"
	"github.com/berfenger/remo2mqtt/internal/notice"
	"github.com/berfenger/remo2mqtt/internal/server"
	"github.com/berfenger/remo2mqtt/internal/util/actorutil"
	"github.com/berfenger/remo2mqtt/pkg/natureremo"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {

	// load and print config
	cfg, migrated, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	slog.Info("remo2mqtt", "version", versioninfo.Short())
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	client := natureremo.NewClient(cfg.Remo.AccessToken,
		natureremo.WithBaseURL(cfg.Remo.BaseURL),
		natureremo.WithTimeout(cfg.Remo.RequestTimeout()),
		natureremo.WithLogger(logger))

	validateCtx, cancelValidate := context.WithTimeout(context.Background(), cfg.Remo.RequestTimeout())
	err = client.ValidateToken(validateCtx)
	cancelValidate()
	if errors.Is(err, natureremo.ErrInvalidAuth) {
		logger.Error("invalid access token")
		return
	} else if err != nil {
		// the cloud may be down, polling will retry
		logger.Warn("could not validate access token", zap.Error(err))
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	coord, err := coordinator.New(as, client, coordinator.Options{
		Interval:     cfg.Remo.Interval(),
		FetchTimeout: cfg.Remo.RequestTimeout(),
		Observer:     m,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("coordinator setup", zap.Error(err))
		return
	}
	if err := coord.Start(); err != nil {
		logger.Error("coordinator start", zap.Error(err))
		return
	}

	refreshCtx, cancelRefresh := context.WithTimeout(context.Background(), 2*cfg.Remo.RequestTimeout())
	if _, err := coord.Refresh(refreshCtx); err != nil {
		logger.Warn("initial refresh failed", zap.Error(err))
	}
	cancelRefresh()

	// optional history
	var recorder *history.Recorder
	if cfg.Influx.Enabled() {
		influx := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		defer influx.Close()
		recorder = history.NewRecorder(influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket), logger)
		recorder.Attach(coord)
		recorder.Record(coord.Get())
	}

	// migration notice
	presenter, err := notice.NewPresenter(notice.NewStore(afero.NewOsFs(), cfg.Notice.StateFile), migrated, logger)
	if err != nil {
		logger.Error("notice setup", zap.Error(err))
		return
	}
	noticeCtx, cancelNotice := context.WithCancel(context.Background())
	defer cancelNotice()
	if err := presenter.Start(noticeCtx, cfg.Notice.AutoAckAfter()); err != nil {
		logger.Error("notice start", zap.Error(err))
		return
	}

	power := &service.AppliancePowerControl{
		Commander: client,
		Source:    coord,
		Logger:    logger,
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, actor.Dependencies{
			Source:      coord,
			Power:       power,
			Notice:      presenter,
			Coordinator: coord.PID(),
		}, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, coord, reg, presenter)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Println("Graceful shutdown complete.")

	if err := ctx.StopFuture(pid).Wait(); err != nil {
		logger.Warn("master stop", zap.Error(err))
	}
	if recorder != nil {
		recorder.Detach()
	}
	coord.Stop()
	presenter.Stop()
	as.Shutdown()
}

func initConfig() (*config.Config, bool, error) {

	// alias PORT => REMO2MQTT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("REMO2MQTT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("remo2mqtt")
	viper.AutomaticEnv()

	// if defined, migrate and load config from yaml file
	migrated := false
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)

			migrated, err = config.MigrateFile(afero.NewOsFs(), cfgFile)
			if err != nil {
				slog.Error("Error migrating config file", "error", err)
			} else if migrated {
				slog.Info("Config file migrated", "version", config.CURRENT_CONFIG_VERSION)
			}

			viper.SetConfigFile(cfgFile)
			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, false, err
	}

	cfg.LogLevel = config.ParseLogLevel(viper.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	return &cfg, migrated, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("config_version", config.CURRENT_CONFIG_VERSION)
	viper.SetDefault("remo.base_url", natureremo.DEFAULT_BASE_URL)
	viper.SetDefault("remo.refresh_interval", config.DEFAULT_REFRESH_INTERVAL)
	viper.SetDefault("remo.request_timeout_millis", 10000)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "remo2mqtt")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("notice.state_file", notice.DEFAULT_STATE_FILE)
	viper.SetDefault("notice.auto_ack_seconds", 300)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.Remo.AccessToken = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Influx.Token = "*redacted*"
	slog.Info("Using", "config", cfg)
}
