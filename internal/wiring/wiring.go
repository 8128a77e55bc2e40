// Package wiring assembles the process's components into one App. It is not
// generated code and does not depend on google/wire; Build below follows a
// constructor-injection discipline by hand, the way cmd/gomenarr/main.go used to do inline before the wiring
// grew past a dozen constructor calls.
package wiring

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/api"
	"github.com/racecarr/racecarr/internal/config"
	"github.com/racecarr/racecarr/internal/logging"
	"github.com/racecarr/racecarr/internal/metrics"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/notify"
	"github.com/racecarr/racecarr/internal/provider"
	"github.com/racecarr/racecarr/internal/scheduler"
	"github.com/racecarr/racecarr/internal/settings"
)

// App holds every long-lived component main.go needs to start and stop.
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *models.Database
	Scheduler *scheduler.Scheduler
	Server    *api.Server
	Metrics   *metrics.Recorder

	db *models.Database
}

// Build constructs every component in dependency order and wires them into
// one App, without starting anything. Close releases the database handle;
// the log file that logging.New may open stays open.
func Build(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	providerClient := provider.NewClient(cfg.F1APIBaseURL, logger)
	settingsMgr := settings.New(db, logger)
	notifier := notify.NewDispatcher(logger)
	metricsRecorder := metrics.New()

	sched := scheduler.New(db, logger, notifier, metricsRecorder)

	server := api.NewServer(":"+cfg.ServerPort, api.Deps{
		DB:              db,
		Scheduler:       sched,
		SettingsManager: settingsMgr,
		Notifier:        notifier,
		Provider:        providerClient,
		Logger:          logger,
		Metrics:         metricsRecorder,
		MetricsHandler:  metricsRecorder.Handler(),
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Scheduler: sched,
		Server:    server,
		Metrics:   metricsRecorder,
		db:        db,
	}, nil
}

// Close releases resources acquired by Build. Safe to call after Scheduler
// and Server have already been stopped.
func (a *App) Close() error {
	return a.db.Close()
}
