package scheduler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mathrand "math/rand"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/racecarr/racecarr/internal/models"
)

// gatedFirstSearchDelay is how long after a session's start_time_utc the
// first search fires, per SPEC_FULL.md §4.9.
const gatedFirstSearchDelay = 30 * time.Minute

// waitingDownloadRecheck is the next_run_at recorded when an entry moves to
// WaitingDownload. Neither loop acts on it: the tick loop only selects
// Scheduled entries, and the poll loop checks every WaitingDownload entry on
// each pass regardless of next_run_at.
const waitingDownloadRecheck = 6 * time.Hour

// downloadFailedCooldown is the fixed retry cooldown after a downloader
// reports Failed, per §9 Open Question (ii): the spec's explicit 1h value,
// not the ad hoc per-window formula the upstream reference used.
const downloadFailedCooldown = 1 * time.Hour

// computeNextRun derives next_run_at for an entry relative to its session's
// start time, following the cadence table in SPEC_FULL.md §4.9: a single
// gated first search at start+30m, then every tick through the aggressive
// window, then every decay_interval_h, jittered by ±jitter_seconds.
func computeNextRun(start *time.Time, now time.Time, s *models.Settings) time.Time {
	if start == nil {
		return now.Add(time.Duration(s.DecayIntervalH) * time.Hour)
	}

	gated := start.Add(gatedFirstSearchDelay)
	if now.Before(gated) {
		return gated
	}

	elapsed := now.Sub(*start)
	var cooldown time.Duration
	if elapsed <= time.Duration(s.AggressiveWindowH)*time.Hour {
		cooldown = time.Duration(s.SchedulerTickSeconds) * time.Second
	} else {
		cooldown = time.Duration(s.DecayIntervalH) * time.Hour
	}

	return applyJitter(now.Add(cooldown), s.JitterSeconds)
}

// stopAfterExceeded reports whether an entry's session started further back
// than stop_after_days, past which the entry moves to Completed(Expired)
// regardless of outcome.
func stopAfterExceeded(start *time.Time, now time.Time, stopAfterDays int) bool {
	if start == nil {
		return false
	}
	return now.Sub(*start) > time.Duration(stopAfterDays)*24*time.Hour
}

// applyJitter nudges t by a uniform random offset in [-jitterSeconds,
// +jitterSeconds], used to avoid every entry in the same cadence window
// waking on the exact same tick.
func applyJitter(t time.Time, jitterSeconds int) time.Time {
	if jitterSeconds <= 0 {
		return t
	}
	offset := mathrand.Intn(2*jitterSeconds+1) - jitterSeconds
	return t.Add(time.Duration(offset) * time.Second)
}

// transientCooldown computes the retry delay after a transient search
// failure (provider/indexer outage), exponential in attempts and capped at
// decay_interval_h, reusing cenkalti/backoff as a pure duration calculator
// rather than for its own retry loop (the retry loop already lives inside
// internal/newznab.Client).
func transientCooldown(attempts int, capHours int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Minute
	bo.Multiplier = 2
	bo.MaxInterval = time.Duration(capHours) * time.Hour
	bo.RandomizationFactor = 0.2

	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = bo.NextBackOff()
	}
	if d <= 0 || d > bo.MaxInterval {
		d = bo.MaxInterval
	}
	return d
}

// dispatchTag is the idempotency/history-matching tag embedded in every sent
// release's title, grounded on original_source's "rc-{round_id}-{event_type}"
// convention.
func dispatchTag(roundID uint64, eventType models.EventType) string {
	return fmt.Sprintf("rc-%d-%s", roundID, strings.ToLower(string(eventType)))
}

// generateDispatchToken produces the value written to
// ScheduledSearch.DispatchToken at the start of a run. No later write
// compares against it; the scheduler's own runs of one entry are serialized
// by that entry's lockFor mutex instead.
func generateDispatchToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
