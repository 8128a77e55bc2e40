package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/racecarr/racecarr/internal/config"
	"github.com/racecarr/racecarr/internal/logging"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/notify"
	"github.com/racecarr/racecarr/internal/scheduler"
)

// newTickCommand runs exactly one scheduler tick and exits, for
// cron-external orchestration or debugging a stuck entry without leaving a
// daemon running.
func newTickCommand() *cobra.Command {
	tickCmd := &cobra.Command{
		Use:   "tick",
		Short: "Scheduler tick utilities",
	}
	tickCmd.AddCommand(newTickOnceCommand())
	return tickCmd
}

func newTickOnceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single scheduler tick synchronously and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tickOnce(cmd)
		},
	}
}

func tickOnce(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	notifier := notify.NewDispatcher(logger)
	sched := scheduler.New(db, logger, notifier, nil)

	if err := sched.RunTickOnce(context.Background()); err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Tick complete")
	return nil
}
