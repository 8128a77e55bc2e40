package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/racecarr/racecarr/internal/downloader"
	"github.com/racecarr/racecarr/internal/models"
)

// pollWaitingDownloads is the second ticker named in SPEC_FULL.md §4.9: every
// WaitingDownload row is checked against its downloader's history for
// completion or failure.
func (s *Scheduler) pollWaitingDownloads(ctx context.Context, settings *models.Settings) {
	waiting, err := s.db.GetScheduledSearchesByStatus(models.StatusWaitingDownload)
	if err != nil {
		s.logger.WithError(err).Error("scheduler: failed to load waiting-download entries")
		return
	}
	if len(waiting) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, entry := range waiting {
		entry := entry
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := s.lockFor(entry.ID)
			lock.Lock()
			defer lock.Unlock()
			s.pollEntry(ctx, entry)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) pollEntry(ctx context.Context, entry *models.ScheduledSearch) {
	if entry.DownloaderID == nil {
		entry.Status = models.StatusFailed
		entry.LastError = "missing downloader"
		entry.NextRunAt = nil
		s.persist(entry)
		return
	}

	d, err := s.db.GetDownloaderByID(*entry.DownloaderID)
	if err != nil || !d.Enabled {
		entry.Status = models.StatusFailed
		entry.LastError = "downloader not available"
		entry.NextRunAt = nil
		s.persist(entry)
		return
	}

	disp, err := s.dispatcherFor(d)
	if err != nil {
		s.logger.WithError(err).Warn("scheduler: poll could not build dispatcher, retrying next poll")
		return
	}

	tag := dispatchTag(entry.RoundID, entry.EventType)
	status, err := disp.Status(ctx, tag)
	if err != nil {
		s.logger.WithError(err).WithField("scheduled_search_id", entry.ID).Warn("scheduler: status poll failed, retrying next poll")
		return
	}

	now := time.Now().UTC()
	switch status {
	case downloader.JobCompleted:
		entry.Status = models.StatusCompleted
		entry.LastError = ""
		entry.NextRunAt = nil
		s.persist(entry)
		s.markHistory(entry, models.HistoryCompleted, now)
		s.fireNotification(ctx, models.EventDownloadComplete, entry, entry.ChosenNZB, 0)
	case downloader.JobFailed:
		entry.Status = models.StatusScheduled
		entry.LastError = "downloader reported failure"
		entry.Attempts++
		entry.NextRunAt = ptrTime(now.Add(downloadFailedCooldown))
		s.persist(entry)
		s.markHistory(entry, models.HistoryFailed, now)
		s.fireNotification(ctx, models.EventDownloadFail, entry, entry.ChosenNZB, 0)
	default:
		// Queued/Downloading/Unknown: still in flight, poll again next tick.
	}
}

// markHistory updates the DownloadHistory row matching entry's chosen NZB to
// its final poll outcome.
func (s *Scheduler) markHistory(entry *models.ScheduledSearch, status models.DownloadHistoryStatus, polledAt time.Time) {
	event, err := s.db.GetEventByRoundAndType(entry.RoundID, entry.EventType)
	if err != nil {
		return
	}
	rows, err := s.db.GetDownloadHistoryByEvent(event.ID)
	if err != nil {
		return
	}
	for _, row := range rows {
		if row.NZBURL != entry.ChosenNZB {
			continue
		}
		row.Status = status
		row.LastPolledAt = &polledAt
		if err := s.db.UpdateDownloadHistory(row); err != nil {
			s.logger.WithError(err).Warn("scheduler: failed to update download history")
		}
		return
	}
}
