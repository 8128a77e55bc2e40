// Package scheduler is the rules engine (C9): one ticker task selects due
// ScheduledSearch rows and runs each through the per-entry cadence state
// machine, dispatching into C5 (query/classify/score), C7 (downloader
// dispatch) and C8 (notifications); a second ticker polls WaitingDownload
// rows for completion. Grounded on the teacher's internal/scheduler/cron.go
// for the overall constructor-injection shape (a Scheduler wrapping the
// store, the downstream clients and a logger, with Start/Stop lifecycle
// methods) and on original_source/services/scheduler.py for the cadence
// formula and dual-loop structure this package re-engineers against a
// time.Ticker instead of a fixed robfig/cron schedule, since SPEC_FULL.md's
// per-entry cadence cannot be expressed as a handful of fixed cron lines.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/downloader"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/newznab"
	"github.com/racecarr/racecarr/internal/notify"
	"github.com/racecarr/racecarr/internal/search"
)

// Scheduler owns both ticker loops and the worker pool that executes due
// entries. One instance per process.
type Scheduler struct {
	db       *models.Database
	logger   *logrus.Logger
	notifier *notify.Dispatcher
	metrics  Recorder

	dispatchersMu sync.Mutex
	dispatchers   map[uint64]*downloader.Dispatcher

	locksMu sync.Mutex
	locks   map[uint64]*sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler. Pass a nil Recorder to run without metrics
// (internal/metrics supplies the concrete one at wiring time).
func New(db *models.Database, logger *logrus.Logger, notifier *notify.Dispatcher, metrics Recorder) *Scheduler {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Scheduler{
		db:          db,
		logger:      logger,
		notifier:    notifier,
		metrics:     metrics,
		dispatchers: make(map[uint64]*downloader.Dispatcher),
		locks:       make(map[uint64]*sync.Mutex),
	}
}

// Start launches the tick loop and the post-send poll loop in their own
// goroutines. The returned context's cancellation (via Stop) propagates into
// every in-flight job per SPEC_FULL.md §5.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.tickLoop(ctx)
	go s.pollLoop(ctx)

	s.logger.Info("scheduler started")
}

// Stop cancels every in-flight job and blocks until both loops exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		settings, err := s.db.GetSettings()
		if err != nil {
			s.logger.WithError(err).Error("scheduler: failed to load settings, skipping tick")
		} else {
			s.runTick(ctx, settings)
		}

		interval := 600 * time.Second
		if settings != nil {
			interval = time.Duration(settings.SchedulerTickSeconds) * time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		settings, err := s.db.GetSettings()
		if err != nil {
			s.logger.WithError(err).Error("scheduler: failed to load settings, skipping poll")
		} else {
			s.pollWaitingDownloads(ctx, settings)
		}

		interval := 5 * time.Minute
		if settings != nil {
			if decay := time.Duration(settings.DecayIntervalH) * time.Hour; decay < interval {
				interval = decay
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// RunTickOnce loads the current settings and runs exactly one tick,
// synchronously, without starting the background loops. Used by the CLI's
// one-shot tick command for cron-external orchestration and debugging.
func (s *Scheduler) RunTickOnce(ctx context.Context) error {
	settings, err := s.db.GetSettings()
	if err != nil {
		return err
	}
	s.runTick(ctx, settings)
	return nil
}

// runTick selects due entries, applies hidden-season pause propagation, and
// dispatches the remainder into a bounded worker pool sized to
// global_concurrency.
func (s *Scheduler) runTick(ctx context.Context, settings *models.Settings) {
	s.metrics.TickStarted()
	now := time.Now().UTC()

	due, err := s.db.GetDueScheduledSearches(now)
	if err != nil {
		s.logger.WithError(err).Error("scheduler: failed to load due entries")
		return
	}

	var runnable []*models.ScheduledSearch
	for _, entry := range due {
		if s.pauseIfHiddenSeason(entry) {
			continue
		}
		runnable = append(runnable, entry)
	}
	s.metrics.EntriesPicked(len(runnable))
	if len(runnable) == 0 {
		return
	}

	indexers, indexerNames, indexerPriority := s.buildIndexerClients(settings)
	if len(indexers) == 0 {
		s.logger.Warn("scheduler: no enabled indexers, deferring due entries")
		return
	}

	concurrency := settings.GlobalConcurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, entry := range runnable {
		entry := entry
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.runEntryLocked(ctx, entry, settings, indexers, indexerNames, indexerPriority)
		}()
	}
	wg.Wait()
}

// pauseIfHiddenSeason enforces testable property 9: entries whose round
// belongs to a hidden season report Paused and are skipped by the tick.
func (s *Scheduler) pauseIfHiddenSeason(entry *models.ScheduledSearch) bool {
	round, err := s.db.GetRoundByID(entry.RoundID)
	if err != nil {
		return false
	}
	season, err := s.db.GetSeasonByID(round.SeasonID)
	if err != nil || !season.IsHidden {
		return false
	}
	if entry.Status == models.StatusPaused {
		return true
	}
	entry.Status = models.StatusPaused
	entry.NextRunAt = nil
	if err := s.db.UpdateScheduledSearch(entry); err != nil {
		s.logger.WithError(err).Warn("scheduler: failed to pause entry for hidden season")
	}
	return true
}

func (s *Scheduler) buildIndexerClients(settings *models.Settings) (map[uint64]search.IndexerSearcher, map[uint64]string, map[uint64]int) {
	enabled, err := s.db.GetEnabledIndexers()
	if err != nil {
		s.logger.WithError(err).Error("scheduler: failed to load indexers")
		return nil, nil, nil
	}

	concurrency := settings.PerIndexerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	clients := make(map[uint64]search.IndexerSearcher, len(enabled))
	names := make(map[uint64]string, len(enabled))
	priority := make(map[uint64]int, len(enabled))
	for _, idx := range enabled {
		clients[idx.ID] = newznab.NewClient(idx, concurrency, s.logger)
		names[idx.ID] = idx.Name
		priority[idx.ID] = idx.Priority
	}
	return clients, names, priority
}

// dispatcherFor lazily builds (and caches) the Dispatcher for a downloader
// row, rebuilding it if the row's connection details changed.
func (s *Scheduler) dispatcherFor(d *models.Downloader) (*downloader.Dispatcher, error) {
	s.dispatchersMu.Lock()
	defer s.dispatchersMu.Unlock()

	if existing, ok := s.dispatchers[d.ID]; ok {
		return existing, nil
	}
	disp, err := downloader.NewDispatcher(d, s.logger)
	if err != nil {
		return nil, err
	}
	s.dispatchers[d.ID] = disp
	return disp, nil
}

// lockFor returns the per-entry mutex serializing state transitions for one
// ScheduledSearch id (SPEC_FULL.md §5 "entry-level mutex").
func (s *Scheduler) lockFor(id uint64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Scheduler) runEntryLocked(ctx context.Context, entry *models.ScheduledSearch, settings *models.Settings, indexers map[uint64]search.IndexerSearcher, indexerNames map[uint64]string, indexerPriority map[uint64]int) {
	lock := s.lockFor(entry.ID)
	lock.Lock()
	defer lock.Unlock()
	s.runEntry(ctx, entry, settings, indexers, indexerNames, indexerPriority)
}
