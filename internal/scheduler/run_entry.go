package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/downloader"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/search"
)

func allowlistContains(allowlist []models.EventType, t models.EventType) bool {
	for _, e := range allowlist {
		if e == t {
			return true
		}
	}
	return false
}

// effectiveSettings clones settings and applies a per-entry quality override,
// leaving zero-valued override fields to inherit the global setting (SPEC_FULL
// §3's QualityOverrides semantics).
func effectiveSettings(settings *models.Settings, overrides *models.QualityOverrides) *models.Settings {
	if overrides == nil {
		return settings
	}
	clone := *settings
	if overrides.MinResolution != 0 {
		clone.MinResolution = overrides.MinResolution
	}
	if overrides.MaxResolution != 0 {
		clone.MaxResolution = overrides.MaxResolution
	}
	if overrides.AllowHDR != nil {
		clone.AllowHDR = *overrides.AllowHDR
	}
	if overrides.AutoDownloadThreshold != 0 {
		clone.AutoDownloadThreshold = overrides.AutoDownloadThreshold
	}
	return &clone
}

// persist writes the entry back, logging (never panicking) on failure; a
// write failure leaves the in-memory entry state unreconciled until the next
// tick re-reads it from the store.
func (s *Scheduler) persist(entry *models.ScheduledSearch) error {
	if err := s.db.UpdateScheduledSearch(entry); err != nil {
		s.logger.WithError(err).WithField("scheduled_search_id", entry.ID).Error("scheduler: failed to persist entry")
		return err
	}
	return nil
}

// runEntry is the per-entry state machine body, called with the entry's
// mutex held. entry reflects the row as loaded at the start of this tick.
func (s *Scheduler) runEntry(ctx context.Context, entry *models.ScheduledSearch, settings *models.Settings, indexers map[uint64]search.IndexerSearcher, indexerNames map[uint64]string, indexerPriority map[uint64]int) {
	now := time.Now().UTC()
	log := s.logger.WithFields(logrus.Fields{"scheduled_search_id": entry.ID, "round_id": entry.RoundID, "event_type": entry.EventType})

	round, err := s.db.GetRoundByID(entry.RoundID)
	if err != nil {
		entry.Status = models.StatusFailed
		entry.LastError = "round not found"
		entry.NextRunAt = nil
		s.persist(entry)
		return
	}

	event, err := s.db.GetEventByRoundAndType(entry.RoundID, entry.EventType)
	var start *time.Time
	if err == nil {
		start = event.StartTimeUTC
	}

	if stopAfterExceeded(start, now, settings.StopAfterDays) {
		entry.Status = models.StatusCompleted
		entry.LastError = "Expired"
		entry.NextRunAt = nil
		s.persist(entry)
		return
	}

	nextDue := computeNextRun(start, now, settings)

	if start == nil {
		entry.Status = models.StatusScheduled
		entry.NextRunAt = &nextDue
		s.persist(entry)
		return
	}
	if now.Before(start.Add(gatedFirstSearchDelay)) {
		entry.Status = models.StatusScheduled
		entry.NextRunAt = &nextDue
		entry.LastError = ""
		s.persist(entry)
		return
	}
	if len(settings.EventAllowlist) > 0 && !allowlistContains(settings.EventAllowlist, entry.EventType) {
		entry.Status = models.StatusScheduled
		entry.LastError = "event type disallowed"
		entry.NextRunAt = &nextDue
		s.persist(entry)
		return
	}

	sessionCanonical := search.SessionCanonicalForEventType(entry.EventType)
	if sessionCanonical == "" {
		entry.Status = models.StatusFailed
		entry.LastError = "event type has no classifier session mapping"
		entry.NextRunAt = nil
		s.persist(entry)
		return
	}

	token := generateDispatchToken()
	entry.Status = models.StatusRunning
	entry.DispatchToken = token
	entry.LastSearchedAt = &now
	entry.Attempts++
	if err := s.persist(entry); err != nil {
		return
	}

	season, err := s.db.GetSeasonByID(round.SeasonID)
	if err != nil {
		entry.Status = models.StatusFailed
		entry.LastError = "season not found"
		entry.NextRunAt = nil
		s.persist(entry)
		return
	}

	roundMeta := search.RoundMeta{Year: season.Year, RoundNumber: round.RoundNumber, Name: round.Name, Circuit: round.Circuit, Country: round.Country}
	searchSettings := effectiveSettings(settings, entry.QualityOverrides)

	result := search.RunRoundSearch(ctx, s.logger, roundMeta, sessionCanonical, nil, indexers, indexerNames, searchSettings, indexerPriority)
	for indexerID := range indexers {
		s.metrics.SearchDispatched(indexerNames[indexerID])
	}

	if result.AllIndexersFailed() {
		entry.Attempts++ // one extra bump for the search attempt itself, beyond the run attempt above
		cooldown := transientCooldown(entry.Attempts, settings.DecayIntervalH)
		entry.Status = models.StatusScheduled
		entry.LastError = "all indexers unavailable"
		entry.NextRunAt = ptrTime(now.Add(cooldown))
		s.persist(entry)
		log.Warn("scheduler: all indexers failed, backing off")
		return
	}

	if len(result.Scored) == 0 {
		entry.Status = models.StatusScheduled
		entry.LastError = "no results"
		entry.NextRunAt = &nextDue
		s.persist(entry)
		return
	}

	best := result.Scored[0]
	if best.Score < searchSettings.AutoDownloadThreshold {
		entry.Status = models.StatusScheduled
		entry.LastError = "no result above threshold"
		entry.NextRunAt = &nextDue
		s.persist(entry)
		return
	}

	chosenDownloader := s.selectDownloader(entry, settings)
	if chosenDownloader == nil {
		entry.Status = models.StatusFailed
		entry.LastError = "no downloader configured"
		entry.NextRunAt = nil
		s.persist(entry)
		return
	}

	disp, err := s.dispatcherFor(chosenDownloader)
	if err != nil {
		entry.Status = models.StatusFailed
		entry.LastError = fmt.Sprintf("downloader unsupported: %v", err)
		entry.NextRunAt = nil
		s.persist(entry)
		return
	}

	nzbURL := best.Candidate.Item.Enclosure.URL
	if nzbURL == "" {
		nzbURL = best.Candidate.Item.Link
	}
	tag := dispatchTag(entry.RoundID, entry.EventType)
	title := fmt.Sprintf("%s [%s]", best.Candidate.Item.Title, tag)
	contentHash := search.ContentHash(chosenDownloader.ID, nzbURL)

	jobID, err := disp.Send(ctx, contentHash, nzbURL, title, chosenDownloader.Category, chosenDownloader.Priority)
	if err != nil {
		if downloader.IsRetryable(err) {
			entry.Status = models.StatusScheduled
			entry.LastError = err.Error()
			entry.NextRunAt = ptrTime(now.Add(transientCooldown(entry.Attempts, settings.DecayIntervalH)))
		} else {
			entry.Status = models.StatusFailed
			entry.LastError = err.Error()
			entry.NextRunAt = nil
		}
		s.persist(entry)
		return
	}

	entry.Status = models.StatusWaitingDownload
	entry.ChosenNZB = nzbURL
	downloaderID := chosenDownloader.ID
	entry.DownloaderID = &downloaderID
	entry.LastError = ""
	entry.NextRunAt = ptrTime(now.Add(waitingDownloadRecheck))
	s.persist(entry)

	hist := &models.DownloadHistory{
		EventID:      event.ID,
		IndexerID:    best.Candidate.IndexerID,
		DownloaderID: chosenDownloader.ID,
		NZBTitle:     best.Candidate.Item.Title,
		NZBURL:       nzbURL,
		Score:        best.Score,
		Status:       models.HistorySent,
	}
	if err := s.db.CreateDownloadHistory(hist); err != nil {
		log.WithError(err).Warn("scheduler: failed to record download history")
	}

	s.metrics.AutoGrabSent()
	log.WithFields(logrus.Fields{"job_id": jobID, "score": best.Score}).Info("scheduler: sent release to downloader")
	s.fireNotification(ctx, models.EventDownloadStart, entry, best.Candidate.Item.Title, best.Score)
}

// selectDownloader implements the override > settings default > error chain
// from SPEC_FULL.md §4.9.
func (s *Scheduler) selectDownloader(entry *models.ScheduledSearch, settings *models.Settings) *models.Downloader {
	if entry.DownloaderID != nil {
		if d, err := s.db.GetDownloaderByID(*entry.DownloaderID); err == nil && d.Enabled {
			return d
		}
	}
	if settings.DefaultDownloaderID != nil {
		if d, err := s.db.GetDownloaderByID(*settings.DefaultDownloaderID); err == nil && d.Enabled {
			return d
		}
	}
	return nil
}

func (s *Scheduler) fireNotification(ctx context.Context, event models.NotificationEvent, entry *models.ScheduledSearch, title string, score int) {
	if s.notifier == nil {
		return
	}
	targets, err := s.db.GetAllNotificationTargets()
	if err != nil || len(targets) == 0 {
		return
	}
	go func() {
		message := fmt.Sprintf("%s (round %d, %s, score %d)", title, entry.RoundID, entry.EventType, score)
		errs := s.notifier.Send(ctx, targets, event, string(event), message, map[string]any{
			"scheduled_search_id": entry.ID,
			"round_id":            entry.RoundID,
			"event_type":          entry.EventType,
			"score":               score,
		})
		ok := len(errs) == 0
		s.metrics.NotificationResult(ok)
		if !ok {
			s.logger.WithField("errors", errs).Warn("scheduler: some notification targets failed")
		}
	}()
}

func ptrTime(t time.Time) *time.Time { return &t }
