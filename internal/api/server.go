package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/api/handlers"
	"github.com/racecarr/racecarr/internal/api/middleware"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/notify"
	"github.com/racecarr/racecarr/internal/provider"
	"github.com/racecarr/racecarr/internal/scheduler"
	"github.com/racecarr/racecarr/internal/settings"
)

// Server is the request surface named in SPEC_FULL.md §4.11, wrapping one
// http.Server over a mux of handlers that talk directly to the store and to
// the scheduler/settings components rather than their own business logic.
// Grounded on the teacher's internal/api/server.go for the constructor
// injection, mux-plus-middleware wiring and Start/Shutdown lifecycle shape.
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// Deps bundles everything a handler might need, built once at process wiring
// time (C12) and threaded through here rather than reconstructed per route.
type Deps struct {
	DB              *models.Database
	Scheduler       *scheduler.Scheduler
	SettingsManager *settings.Manager
	Notifier        *notify.Dispatcher
	Provider        *provider.Client
	Logger          *logrus.Logger
	Metrics         scheduler.Recorder // nil is fine; handlers fall back to a no-op
	MetricsHandler  http.Handler       // nil until C13 wires one in
}

// NewServer builds the HTTP server bound to addr (":8080" style) from deps.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{logger: deps.Logger}

	mux := http.NewServeMux()
	s.setupRoutes(mux, deps)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      middleware.Logging(mux, deps.Logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(mux *http.ServeMux, deps Deps) {
	health := handlers.NewHealthHandler(deps.DB, deps.Logger)
	mux.HandleFunc("/health", health.ServeHTTP)
	mux.HandleFunc("/ready", health.ServeReady)

	status := handlers.NewStatusHandler(deps.DB, deps.Logger)
	mux.HandleFunc("/status", status.ServeHTTP)

	settingsH := handlers.NewSettingsHandler(deps.SettingsManager)
	mux.HandleFunc("/api/settings", settingsH.ServeHTTP)

	seasonsH := handlers.NewSeasonsHandler(deps.DB, deps.Provider, deps.Logger)
	mux.HandleFunc("/api/seasons", seasonsH.ServeCollection)
	mux.HandleFunc("/api/seasons/", seasonsH.ServeItem)

	indexersH := handlers.NewIndexersHandler(deps.DB)
	mux.HandleFunc("/api/indexers", indexersH.ServeCollection)
	mux.HandleFunc("/api/indexers/", indexersH.ServeItem)

	downloadersH := handlers.NewDownloadersHandler(deps.DB, deps.Logger)
	mux.HandleFunc("/api/downloaders", downloadersH.ServeCollection)
	mux.HandleFunc("/api/downloaders/", downloadersH.ServeItem)

	notificationsH := handlers.NewNotificationsHandler(deps.DB, deps.Notifier)
	mux.HandleFunc("/api/notifications", notificationsH.ServeCollection)
	mux.HandleFunc("/api/notifications/", notificationsH.ServeItem)

	searchesH := handlers.NewSearchesHandler(deps.DB, deps.Scheduler)
	mux.HandleFunc("/api/searches", searchesH.ServeCollection)
	mux.HandleFunc("/api/searches/", searchesH.ServeItem)

	roundH := handlers.NewRoundHandler(deps.DB, deps.Scheduler, deps.Metrics, deps.Logger)
	mux.HandleFunc("/api/rounds/", roundH.ServeRoundAction)

	webhookH := handlers.NewWebhookHandler(deps.DB, deps.Logger)
	mux.HandleFunc("/api/webhook/downloader", webhookH.ServeHTTP)

	if deps.MetricsHandler != nil {
		mux.Handle("/metrics", deps.MetricsHandler)
	}
}

// Start runs ListenAndServe in a goroutine and blocks until either it errors
// or ctx is cancelled, in which case it drives a graceful Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.server.Addr).Info("starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the HTTP server within a bounded timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
