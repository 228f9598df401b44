package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TwsePulse/internal/domain/repository"
	"TwsePulse/internal/scheduler"
	pkgch "TwsePulse/pkg/clickhouse"
	"TwsePulse/pkg/config"
	xhttp "TwsePulse/pkg/http"
	pkgkafka "TwsePulse/pkg/kafka"
	applogger "TwsePulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	handler    xhttp.Handler
	scheduler  *scheduler.Scheduler
	sink       repository.SnapshotSink
	notifier   repository.Notifier
	producer   *pkgkafka.Producer
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	sched *scheduler.Scheduler,
	sink repository.SnapshotSink,
	notifier repository.Notifier,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		handler:   handler,
		scheduler: sched,
		sink:      sink,
		notifier:  notifier,
		producer:  producer,
		chClient:  chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.logger),
	)

	schedulerRunning := false
	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Register(a.cfg.Scheduler.OverlapCron); err != nil {
			return err
		}
		a.scheduler.Start()
		schedulerRunning = true
		a.logger.Info("overlap broadcast scheduled",
			applogger.String("cron", a.cfg.Scheduler.OverlapCron))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("etfs", a.cfg.Analytics.ETFs))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(schedulerRunning)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(schedulerRunning bool) error {
	if schedulerRunning {
		a.scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.logger.Warn("notifier close error", applogger.Error(err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("snapshot sink close error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
