package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/racecarr/racecarr/internal/apierrors"
	"github.com/racecarr/racecarr/internal/models"
)

// ComputeNextRun exposes the cadence formula to the request surface (C11) so
// a newly created ScheduledSearch gets a correctly seeded next_run_at without
// duplicating the formula.
func ComputeNextRun(start *time.Time, now time.Time, settings *models.Settings) time.Time {
	return computeNextRun(start, now, settings)
}

// Pause forces an entry out of the tick loop's selection set immediately,
// for the operator Pause transition named in SPEC_FULL.md §4.9.
func (s *Scheduler) Pause(id uint64) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.db.GetScheduledSearchByID(id)
	if err != nil {
		return apierrors.NotFound(fmt.Sprintf("scheduled search %d not found", id))
	}
	if entry.Status == models.StatusCompleted {
		return apierrors.StateConflict("cannot pause a completed entry")
	}
	entry.Status = models.StatusPaused
	entry.NextRunAt = nil
	return s.db.UpdateScheduledSearch(entry)
}

// Resume reschedules a Paused entry for the next tick boundary.
func (s *Scheduler) Resume(id uint64) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.db.GetScheduledSearchByID(id)
	if err != nil {
		return apierrors.NotFound(fmt.Sprintf("scheduled search %d not found", id))
	}
	if entry.Status != models.StatusPaused {
		return apierrors.StateConflict("entry is not paused")
	}
	now := time.Now().UTC()
	entry.Status = models.StatusScheduled
	entry.NextRunAt = &now
	entry.LastError = ""
	return s.db.UpdateScheduledSearch(entry)
}

// RunNow executes one entry immediately outside the tick loop, for the
// operator run-now action (C11). The entry must be Scheduled or Failed;
// Paused/Completed/Running/WaitingDownload entries reject with a
// state-conflict error.
func (s *Scheduler) RunNow(ctx context.Context, id uint64) error {
	entry, err := s.db.GetScheduledSearchByID(id)
	if err != nil {
		return apierrors.NotFound(fmt.Sprintf("scheduled search %d not found", id))
	}
	if entry.Status != models.StatusScheduled && entry.Status != models.StatusFailed {
		return apierrors.StateConflict(fmt.Sprintf("cannot run-now an entry in status %s", entry.Status))
	}

	settings, err := s.db.GetSettings()
	if err != nil {
		return err
	}
	indexers, indexerNames, indexerPriority := s.buildIndexerClients(settings)
	if len(indexers) == 0 {
		return apierrors.Configuration("no enabled indexers configured")
	}

	s.runEntryLocked(ctx, entry, settings, indexers, indexerNames, indexerPriority)
	return nil
}
