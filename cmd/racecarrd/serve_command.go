package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/racecarr/racecarr/internal/config"
	"github.com/racecarr/racecarr/internal/wiring"
)

// newServeCommand runs the daemon: scheduler plus HTTP request surface,
// until an OS signal arrives. Grounded on the teacher's cmd/gomenarr/main.go
// run() function, lifted behind a cobra subcommand the way the rest of the
// pack (five82-spindle's "daemon run") separates process lifecycle from the
// CLI's other one-shot commands.
func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and HTTP server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := wiring.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}
	defer app.Close()

	app.Logger.Info("starting racecarrd")
	app.Logger.WithField("database_file", cfg.DatabaseFile).Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.Scheduler.Start(ctx)
	defer app.Scheduler.Stop()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := app.Server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	app.Logger.Info("racecarrd is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.Logger.WithField("signal", sig).Info("received shutdown signal")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer shutdownCancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			app.Logger.WithError(err).Error("error during server shutdown")
		}
	}

	app.Logger.Info("racecarrd stopped")
	return nil
}
