package settings

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecarr/racecarr/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := logrus.New()
	return New(db, logger)
}

func TestGet_SeedsDefaultsOnFirstCall(t *testing.T) {
	m := newTestManager(t)
	s, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, 70, s.AutoDownloadThreshold)
	assert.Equal(t, "info", s.LogLevel)
}

func TestUpdate_PersistsAndAppliesLogLevel(t *testing.T) {
	m := newTestManager(t)
	current, err := m.Get()
	require.NoError(t, err)

	current.LogLevel = "debug"
	current.AutoDownloadThreshold = 85
	updated, err := m.Update(current)
	require.NoError(t, err)
	assert.Equal(t, "debug", updated.LogLevel)
	assert.Equal(t, logrus.DebugLevel, m.logger.GetLevel())

	reread, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, 85, reread.AutoDownloadThreshold)
}

func TestUpdate_RejectsInvalidLogLevel(t *testing.T) {
	m := newTestManager(t)
	current, err := m.Get()
	require.NoError(t, err)
	current.LogLevel = "verbose"

	_, err = m.Update(current)
	assert.ErrorContains(t, err, "log_level")
}

func TestUpdate_RejectsInvertedResolutionBounds(t *testing.T) {
	m := newTestManager(t)
	current, err := m.Get()
	require.NoError(t, err)
	current.MinResolution = 2160
	current.MaxResolution = 1080

	_, err = m.Update(current)
	assert.ErrorContains(t, err, "min_resolution")
}

func TestUpdate_RejectsNonPositiveConcurrency(t *testing.T) {
	m := newTestManager(t)
	current, err := m.Get()
	require.NoError(t, err)
	current.GlobalConcurrency = 0

	_, err = m.Update(current)
	assert.ErrorContains(t, err, "global_concurrency")
}
