package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/racecarr/racecarr/internal/models"
)

func settingsFixture() *models.Settings {
	s := models.DefaultSettings()
	s.SchedulerTickSeconds = 600
	s.AggressiveWindowH = 24
	s.DecayIntervalH = 6
	s.JitterSeconds = 120
	s.StopAfterDays = 14
	return s
}

func TestComputeNextRun_NilStartUsesDecayInterval(t *testing.T) {
	s := settingsFixture()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	got := computeNextRun(nil, now, s)
	assert.Equal(t, now.Add(6*time.Hour), got)
}

func TestComputeNextRun_BeforeGatedFirstSearch(t *testing.T) {
	s := settingsFixture()
	start := time.Date(2025, 3, 15, 16, 0, 0, 0, time.UTC)
	now := start.Add(10 * time.Minute)
	got := computeNextRun(&start, now, s)
	assert.Equal(t, start.Add(30*time.Minute), got)
}

func TestComputeNextRun_AggressiveWindowUsesTickIntervalWithinJitterBounds(t *testing.T) {
	s := settingsFixture()
	start := time.Date(2025, 3, 15, 16, 0, 0, 0, time.UTC)
	now := start.Add(2 * time.Hour)
	got := computeNextRun(&start, now, s)

	base := now.Add(time.Duration(s.SchedulerTickSeconds) * time.Second)
	lower := base.Add(-time.Duration(s.JitterSeconds) * time.Second)
	upper := base.Add(time.Duration(s.JitterSeconds) * time.Second)
	assert.True(t, !got.Before(lower) && !got.After(upper), "next run %v outside [%v, %v]", got, lower, upper)
}

func TestComputeNextRun_DecayWindowUsesDecayIntervalWithinJitterBounds(t *testing.T) {
	s := settingsFixture()
	start := time.Date(2025, 3, 15, 16, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Hour) // past the 24h aggressive window
	got := computeNextRun(&start, now, s)

	base := now.Add(time.Duration(s.DecayIntervalH) * time.Hour)
	lower := base.Add(-time.Duration(s.JitterSeconds) * time.Second)
	upper := base.Add(time.Duration(s.JitterSeconds) * time.Second)
	assert.True(t, !got.Before(lower) && !got.After(upper), "next run %v outside [%v, %v]", got, lower, upper)
}

func TestStopAfterExceeded(t *testing.T) {
	start := time.Now().UTC().Add(-15 * 24 * time.Hour)
	assert.True(t, stopAfterExceeded(&start, time.Now().UTC(), 14))

	recent := time.Now().UTC().Add(-2 * 24 * time.Hour)
	assert.False(t, stopAfterExceeded(&recent, time.Now().UTC(), 14))

	assert.False(t, stopAfterExceeded(nil, time.Now().UTC(), 14))
}

func TestApplyJitter_StaysWithinBounds(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		got := applyJitter(base, 120)
		assert.True(t, !got.Before(base.Add(-120*time.Second)) && !got.After(base.Add(120*time.Second)))
	}
}

func TestApplyJitter_ZeroJitterIsNoOp(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, base, applyJitter(base, 0))
}

func TestTransientCooldown_GrowsThenCaps(t *testing.T) {
	d1 := transientCooldown(1, 6)
	d4 := transientCooldown(4, 6)
	d20 := transientCooldown(20, 6)

	assert.True(t, d4 >= d1)
	assert.True(t, d20 <= 6*time.Hour+1*time.Hour) // capped near MaxInterval, randomization tolerance
}

func TestDispatchTag_Format(t *testing.T) {
	assert.Equal(t, "rc-12-race", dispatchTag(12, models.EventRace))
	assert.Equal(t, "rc-3-sprintqualifying", dispatchTag(3, models.EventSprintQualifying))
}

func TestGenerateDispatchToken_Unique(t *testing.T) {
	a := generateDispatchToken()
	b := generateDispatchToken()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
