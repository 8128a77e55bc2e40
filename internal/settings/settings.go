// Package settings is the runtime settings manager (C10): the single
// persisted Settings row, read on boot and re-read on every mutation.
// Quality/score parameters are never cached past a single read (SPEC_FULL.md
// §4.8) so a change takes effect on the very next search or tick. Grounded
// on the teacher's internal/config/config.go for validate-then-store shape,
// generalized from a boot-time-only viper load to a live, store-backed
// singleton that can change while the process runs.
package settings

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/apierrors"
	"github.com/racecarr/racecarr/internal/logging"
	"github.com/racecarr/racecarr/internal/models"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Manager owns reads/writes of the singleton Settings row and applies the
// side effects a mutation requires (live log level change).
type Manager struct {
	db     *models.Database
	logger *logrus.Logger
}

func New(db *models.Database, logger *logrus.Logger) *Manager {
	return &Manager{db: db, logger: logger}
}

// Get returns the current settings, auto-seeded with defaults on first call
// (models.Database.GetSettings already handles the seed-on-ErrNotFound path).
func (m *Manager) Get() (*models.Settings, error) {
	return m.db.GetSettings()
}

// Update applies patch on top of the current settings after validation, then
// persists and — if log_level changed — reconfigures the live logger.
// patch is the caller's fully-formed desired state (C11 is responsible for
// merging partial request bodies onto a freshly read copy before calling
// Update, the same read-modify-write shape the teacher's controllers use).
func (m *Manager) Update(patch *models.Settings) (*models.Settings, error) {
	if err := validate(patch); err != nil {
		return nil, err
	}

	current, err := m.db.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load current settings: %w", err)
	}

	if err := m.db.PutSettings(patch); err != nil {
		return nil, fmt.Errorf("failed to persist settings: %w", err)
	}

	if patch.LogLevel != current.LogLevel {
		if err := logging.SetLevel(m.logger, patch.LogLevel); err != nil {
			m.logger.WithError(err).Warn("settings: failed to apply new log level")
		} else {
			m.logger.WithField("log_level", patch.LogLevel).Info("settings: log level updated")
		}
	}

	return patch, nil
}

func validate(s *models.Settings) error {
	if !validLogLevels[s.LogLevel] {
		return apierrors.Validation(fmt.Sprintf("invalid log_level %q", s.LogLevel))
	}
	if s.AutoDownloadThreshold < 0 {
		return apierrors.Validation("auto_download_threshold must be non-negative")
	}
	if s.MinResolution != 0 && s.MaxResolution != 0 && s.MinResolution > s.MaxResolution {
		return apierrors.Validation("min_resolution cannot exceed max_resolution")
	}
	if s.SchedulerTickSeconds <= 0 {
		return apierrors.Validation("scheduler_tick_seconds must be positive")
	}
	if s.AggressiveWindowH <= 0 {
		return apierrors.Validation("aggressive_window_h must be positive")
	}
	if s.DecayIntervalH <= 0 {
		return apierrors.Validation("decay_interval_h must be positive")
	}
	if s.StopAfterDays <= 0 {
		return apierrors.Validation("stop_after_days must be positive")
	}
	if s.JitterSeconds < 0 {
		return apierrors.Validation("jitter_seconds must be non-negative")
	}
	if s.PerIndexerConcurrency <= 0 {
		return apierrors.Validation("per_indexer_concurrency must be positive")
	}
	if s.GlobalConcurrency <= 0 {
		return apierrors.Validation("global_concurrency must be positive")
	}
	return nil
}
