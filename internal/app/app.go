// Package app wires the sync service together: configuration, the object
// store and queue clients, the sync engine, the liveness tracker, and the
// HTTP surface, plus signal handling and graceful drain on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/modelsync/internal/artifact"
	"github.com/dmitrijs2005/modelsync/internal/config"
	"github.com/dmitrijs2005/modelsync/internal/engine"
	"github.com/dmitrijs2005/modelsync/internal/filex"
	"github.com/dmitrijs2005/modelsync/internal/health"
	"github.com/dmitrijs2005/modelsync/internal/httpapi"
	"github.com/dmitrijs2005/modelsync/internal/logging"
	"github.com/dmitrijs2005/modelsync/internal/notify"
	"github.com/dmitrijs2005/modelsync/internal/queue"
	"github.com/dmitrijs2005/modelsync/internal/store"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	engine  *engine.Engine
	server  *httpapi.Server
	tracker *health.Tracker
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(slog.LevelInfo)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := filex.EnsureDir(cfg.BaseDir); err != nil {
		return nil, fmt.Errorf("base dir: %w", err)
	}

	validator := artifact.NewValidator(logger)

	storeClient, err := store.NewClientFromConfig(ctx, cfg, validator, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	consumer, err := queue.NewConsumerFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("queue init error: %w", err)
	}

	publisher, err := notify.NewPublisherFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("notify init error: %w", err)
	}

	tracker := health.NewTracker(cfg.HealthThreshold)

	var notifier engine.Notifier
	if publisher != nil {
		notifier = publisher
	} else {
		logger.Warn(ctx, "no SNS topic configured, downstream notifications disabled")
	}

	eng := engine.New(storeClient, consumer, notifier, validator, tracker, logger,
		cfg.BaseDir, cfg.IdlePause, cfg.ErrorBackoff)

	server := httpapi.NewServer(cfg, tracker, eng, logger)

	return &App{config: cfg, logger: logger, engine: eng, server: server, tracker: tracker}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the engine loop and the HTTP surface and blocks until both have
// drained after a stop signal or context cancellation.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "bucket", app.config.Bucket, "base_dir", app.config.BaseDir)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.engine.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	app.logger.Info(ctx, "Shutdown complete")
}
