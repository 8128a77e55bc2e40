// Package config loads process-level, boot-time configuration. Runtime-mutable
// settings (log level, scoring knobs) live in the store instead (internal/settings)
// per SPEC_FULL.md §4.8; this package only covers what cannot change without a
// restart. Grounded on the teacher's internal/config/config.go (viper + .env +
// SetDefault + validated Load()).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds process-level configuration loaded once at boot.
type Config struct {
	// Schedule provider (C3)
	F1APIBaseURL string

	// Server
	ServerPort string

	// Scheduler knobs. SchedulerTickSeconds is loaded but not applied: the
	// scheduler reads its tick from the Settings row (C10), which is seeded
	// from models.DefaultSettings, not from this value.
	SchedulerTickSeconds int
	ShutdownGrace        time.Duration

	// Paths
	DatabaseFile string
	LogFile      string

	// Logging
	LogLevel string
}

// Load reads .env + process environment via viper and validates required
// fields, following the teacher's Load() shape exactly.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	viper.SetDefault("F1API_BASE_URL", "https://f1api.dev")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SCHEDULER_TICK_SECONDS", 600)
	viper.SetDefault("SHUTDOWN_GRACE_SECONDS", 10)
	viper.SetDefault("LOG_LEVEL", "info")

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "racecarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		F1APIBaseURL:         viper.GetString("F1API_BASE_URL"),
		ServerPort:           viper.GetString("SERVER_PORT"),
		SchedulerTickSeconds: viper.GetInt("SCHEDULER_TICK_SECONDS"),
		ShutdownGrace:        time.Duration(viper.GetInt("SHUTDOWN_GRACE_SECONDS")) * time.Second,
		DatabaseFile:         filepath.Join(configDir, "racecarr.db"),
		LogFile:              filepath.Join(configDir, "racecarr.log"),
		LogLevel:             viper.GetString("LOG_LEVEL"),
	}

	if cfg.F1APIBaseURL == "" {
		return nil, fmt.Errorf("F1API_BASE_URL is required")
	}

	return cfg, nil
}
