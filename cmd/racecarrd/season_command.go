package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/racecarr/racecarr/internal/config"
	"github.com/racecarr/racecarr/internal/logging"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/provider"
)

// newSeasonCommand wraps C3's schedule importer for one-shot use outside
// the running daemon, e.g. seeding a fresh database before the first
// "racecarrd serve".
func newSeasonCommand() *cobra.Command {
	seasonCmd := &cobra.Command{
		Use:   "season",
		Short: "Season schedule utilities",
	}
	seasonCmd.AddCommand(newSeasonRefreshCommand())
	return seasonCmd
}

func newSeasonRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <year>",
		Short: "Fetch a season's round schedule from the provider and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q: %w", args[0], err)
			}
			return seasonRefresh(cmd, year)
		},
	}
}

func seasonRefresh(cmd *cobra.Command, year int) error {
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

	client := provider.NewClient(cfg.F1APIBaseURL, logger)
	season, err := provider.RefreshSeason(context.Background(), client, db, year)
	if err != nil {
		return fmt.Errorf("refresh season %d: %w", year, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Season %d refreshed, last_refreshed=%s\n", season.Year, season.LastRefreshed)
	return nil
}
