package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrNotFound is re-exported so callers outside this package don't need to
// import bolthold directly.
var ErrNotFound = bolthold.ErrNotFound

// Database wraps the embedded bolthold store. Per SPEC_FULL.md §4.1 all writes
// go through a single serialized writer; writeMu enforces that one write
// transaction is in flight at a time while reads remain concurrent.
type Database struct {
	store   *bolthold.Store
	writeMu sync.Mutex
}

// NewDatabase opens (creating if absent) the embedded store at path.
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the underlying store.
func (db *Database) Close() error {
	return db.store.Close()
}

func (db *Database) withWriter(fn func() error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	return fn()
}

// --- Season ---

func (db *Database) CreateSeason(s *Season) error {
	return db.withWriter(func() error {
		return db.store.Insert(bolthold.NextSequence(), s)
	})
}

func (db *Database) UpdateSeason(s *Season) error {
	return db.withWriter(func() error {
		return db.store.Update(s.ID, s)
	})
}

func (db *Database) GetSeasonByYear(year int) (*Season, error) {
	var seasons []*Season
	if err := db.store.Find(&seasons, bolthold.Where("Year").Eq(year)); err != nil {
		return nil, err
	}
	if len(seasons) == 0 {
		return nil, ErrNotFound
	}
	return seasons[0], nil
}

func (db *Database) GetSeasonByID(id uint64) (*Season, error) {
	var s Season
	if err := db.store.Get(id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *Database) GetAllSeasons() ([]*Season, error) {
	var seasons []*Season
	err := db.store.Find(&seasons, nil)
	return seasons, err
}

// DeleteSeason hard-deletes a season and cascades to its rounds, events,
// scheduled searches and cached searches.
func (db *Database) DeleteSeason(id uint64) error {
	return db.withWriter(func() error {
		var rounds []*Round
		if err := db.store.Find(&rounds, bolthold.Where("SeasonID").Eq(id)); err != nil {
			return err
		}
		for _, r := range rounds {
			if err := db.deleteRoundCascadeLocked(r.ID); err != nil {
				return err
			}
		}
		return db.store.Delete(id, &Season{})
	})
}

// --- Round ---

func (db *Database) CreateRound(r *Round) error {
	return db.withWriter(func() error {
		return db.store.Insert(bolthold.NextSequence(), r)
	})
}

func (db *Database) UpdateRound(r *Round) error {
	return db.withWriter(func() error {
		return db.store.Update(r.ID, r)
	})
}

func (db *Database) GetRoundByID(id uint64) (*Round, error) {
	var r Round
	if err := db.store.Get(id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *Database) GetRoundBySeasonAndNumber(seasonID uint64, number int) (*Round, error) {
	var rounds []*Round
	err := db.store.Find(&rounds, bolthold.Where("SeasonID").Eq(seasonID).And("RoundNumber").Eq(number))
	if err != nil {
		return nil, err
	}
	if len(rounds) == 0 {
		return nil, ErrNotFound
	}
	return rounds[0], nil
}

func (db *Database) GetRoundsBySeason(seasonID uint64) ([]*Round, error) {
	var rounds []*Round
	err := db.store.Find(&rounds, bolthold.Where("SeasonID").Eq(seasonID))
	return rounds, err
}

func (db *Database) deleteRoundCascadeLocked(roundID uint64) error {
	var events []*Event
	if err := db.store.Find(&events, bolthold.Where("RoundID").Eq(roundID)); err != nil {
		return err
	}
	for _, ev := range events {
		if err := db.store.Delete(ev.ID, &Event{}); err != nil {
			return err
		}
	}

	var searches []*ScheduledSearch
	if err := db.store.Find(&searches, bolthold.Where("RoundID").Eq(roundID)); err != nil {
		return err
	}
	for _, ss := range searches {
		if err := db.store.Delete(ss.ID, &ScheduledSearch{}); err != nil {
			return err
		}
	}

	var cached []*CachedRoundSearch
	if err := db.store.Find(&cached, bolthold.Where("RoundID").Eq(roundID)); err != nil {
		return err
	}
	for _, c := range cached {
		if err := db.store.Delete(c.ID, &CachedRoundSearch{}); err != nil {
			return err
		}
	}

	return db.store.Delete(roundID, &Round{})
}

// --- Event ---

func (db *Database) CreateEvent(e *Event) error {
	return db.withWriter(func() error {
		return db.store.Insert(bolthold.NextSequence(), e)
	})
}

func (db *Database) UpdateEvent(e *Event) error {
	return db.withWriter(func() error {
		return db.store.Update(e.ID, e)
	})
}

func (db *Database) DeleteEvent(id uint64) error {
	return db.withWriter(func() error {
		return db.store.Delete(id, &Event{})
	})
}

func (db *Database) GetEventByID(id uint64) (*Event, error) {
	var e Event
	if err := db.store.Get(id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (db *Database) GetEventByRoundAndType(roundID uint64, t EventType) (*Event, error) {
	var events []*Event
	err := db.store.Find(&events, bolthold.Where("RoundID").Eq(roundID).And("Type").Eq(t))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events[0], nil
}

func (db *Database) GetEventsByRound(roundID uint64) ([]*Event, error) {
	var events []*Event
	err := db.store.Find(&events, bolthold.Where("RoundID").Eq(roundID))
	return events, err
}

// --- Indexer ---

func (db *Database) CreateIndexer(i *Indexer) error {
	return db.withWriter(func() error {
		return db.store.Insert(bolthold.NextSequence(), i)
	})
}

func (db *Database) UpdateIndexer(i *Indexer) error {
	return db.withWriter(func() error {
		return db.store.Update(i.ID, i)
	})
}

func (db *Database) DeleteIndexer(id uint64) error {
	return db.withWriter(func() error {
		return db.store.Delete(id, &Indexer{})
	})
}

func (db *Database) GetIndexerByID(id uint64) (*Indexer, error) {
	var i Indexer
	if err := db.store.Get(id, &i); err != nil {
		return nil, err
	}
	return &i, nil
}

func (db *Database) GetEnabledIndexers() ([]*Indexer, error) {
	var indexers []*Indexer
	err := db.store.Find(&indexers, bolthold.Where("Enabled").Eq(true))
	return indexers, err
}

func (db *Database) GetAllIndexers() ([]*Indexer, error) {
	var indexers []*Indexer
	err := db.store.Find(&indexers, nil)
	return indexers, err
}

// --- Downloader ---

func (db *Database) CreateDownloader(d *Downloader) error {
	return db.withWriter(func() error {
		return db.store.Insert(bolthold.NextSequence(), d)
	})
}

func (db *Database) UpdateDownloader(d *Downloader) error {
	return db.withWriter(func() error {
		return db.store.Update(d.ID, d)
	})
}

func (db *Database) DeleteDownloader(id uint64) error {
	return db.withWriter(func() error {
		return db.store.Delete(id, &Downloader{})
	})
}

func (db *Database) GetDownloaderByID(id uint64) (*Downloader, error) {
	var d Downloader
	if err := db.store.Get(id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (db *Database) GetEnabledDownloaders() ([]*Downloader, error) {
	var downloaders []*Downloader
	err := db.store.Find(&downloaders, bolthold.Where("Enabled").Eq(true))
	return downloaders, err
}

func (db *Database) GetAllDownloaders() ([]*Downloader, error) {
	var downloaders []*Downloader
	err := db.store.Find(&downloaders, nil)
	return downloaders, err
}

// --- ScheduledSearch ---

func (db *Database) CreateScheduledSearch(s *ScheduledSearch) error {
	return db.withWriter(func() error {
		existing, err := db.findScheduledSearchLocked(s.RoundID, s.EventType)
		if err != nil && err != ErrNotFound {
			return err
		}
		if existing != nil {
			return fmt.Errorf("scheduled search already exists for round %d event %s", s.RoundID, s.EventType)
		}
		s.AddedAt = time.Now().UTC()
		return db.store.Insert(bolthold.NextSequence(), s)
	})
}

func (db *Database) UpdateScheduledSearch(s *ScheduledSearch) error {
	return db.withWriter(func() error {
		return db.store.Update(s.ID, s)
	})
}

func (db *Database) DeleteScheduledSearch(id uint64) error {
	return db.withWriter(func() error {
		return db.store.Delete(id, &ScheduledSearch{})
	})
}

func (db *Database) GetScheduledSearchByID(id uint64) (*ScheduledSearch, error) {
	var s ScheduledSearch
	if err := db.store.Get(id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *Database) findScheduledSearchLocked(roundID uint64, eventType EventType) (*ScheduledSearch, error) {
	var searches []*ScheduledSearch
	err := db.store.Find(&searches, bolthold.Where("RoundID").Eq(roundID).And("EventType").Eq(eventType))
	if err != nil {
		return nil, err
	}
	if len(searches) == 0 {
		return nil, ErrNotFound
	}
	return searches[0], nil
}

func (db *Database) GetScheduledSearchByRoundAndType(roundID uint64, eventType EventType) (*ScheduledSearch, error) {
	return db.findScheduledSearchLocked(roundID, eventType)
}

// GetDueScheduledSearches returns Scheduled rows whose NextRunAt has passed,
// ordered by NextRunAt ascending, for the scheduler's tick (SPEC_FULL.md §4.9).
func (db *Database) GetDueScheduledSearches(now time.Time) ([]*ScheduledSearch, error) {
	var searches []*ScheduledSearch
	err := db.store.Find(&searches,
		bolthold.Where("Status").Eq(StatusScheduled).And("NextRunAt").Le(now).SortBy("NextRunAt"))
	return searches, err
}

func (db *Database) GetScheduledSearchesByStatus(status ScheduledSearchStatus) ([]*ScheduledSearch, error) {
	var searches []*ScheduledSearch
	err := db.store.Find(&searches, bolthold.Where("Status").Eq(status))
	return searches, err
}

func (db *Database) GetAllScheduledSearches() ([]*ScheduledSearch, error) {
	var searches []*ScheduledSearch
	err := db.store.Find(&searches, nil)
	return searches, err
}

// --- DownloadHistory ---

func (db *Database) CreateDownloadHistory(h *DownloadHistory) error {
	return db.withWriter(func() error {
		h.CreatedAt = time.Now().UTC()
		h.UpdatedAt = h.CreatedAt
		return db.store.Insert(bolthold.NextSequence(), h)
	})
}

func (db *Database) UpdateDownloadHistory(h *DownloadHistory) error {
	return db.withWriter(func() error {
		h.UpdatedAt = time.Now().UTC()
		return db.store.Update(h.ID, h)
	})
}

func (db *Database) GetDownloadHistoryByID(id uint64) (*DownloadHistory, error) {
	var h DownloadHistory
	if err := db.store.Get(id, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (db *Database) GetDownloadHistoryByEvent(eventID uint64) ([]*DownloadHistory, error) {
	var rows []*DownloadHistory
	err := db.store.Find(&rows, bolthold.Where("EventID").Eq(eventID))
	return rows, err
}

func (db *Database) GetDownloadHistoryByStatus(status DownloadHistoryStatus) ([]*DownloadHistory, error) {
	var rows []*DownloadHistory
	err := db.store.Find(&rows, bolthold.Where("Status").Eq(status))
	return rows, err
}

// --- NotificationTarget ---

func (db *Database) CreateNotificationTarget(n *NotificationTarget) error {
	return db.withWriter(func() error {
		return db.store.Insert(bolthold.NextSequence(), n)
	})
}

func (db *Database) UpdateNotificationTarget(n *NotificationTarget) error {
	return db.withWriter(func() error {
		return db.store.Update(n.ID, n)
	})
}

func (db *Database) DeleteNotificationTarget(id uint64) error {
	return db.withWriter(func() error {
		return db.store.Delete(id, &NotificationTarget{})
	})
}

func (db *Database) GetAllNotificationTargets() ([]*NotificationTarget, error) {
	var targets []*NotificationTarget
	err := db.store.Find(&targets, nil)
	return targets, err
}

// --- CachedRoundSearch ---

func (db *Database) GetCachedRoundSearch(roundID uint64, fingerprint string) (*CachedRoundSearch, error) {
	var rows []*CachedRoundSearch
	err := db.store.Find(&rows, bolthold.Where("RoundID").Eq(roundID).And("AllowlistFingerprint").Eq(fingerprint))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// PutCachedRoundSearch atomically replaces any prior value for the same key.
func (db *Database) PutCachedRoundSearch(c *CachedRoundSearch) error {
	return db.withWriter(func() error {
		var existing []*CachedRoundSearch
		err := db.store.Find(&existing,
			bolthold.Where("RoundID").Eq(c.RoundID).And("AllowlistFingerprint").Eq(c.AllowlistFingerprint))
		if err != nil {
			return err
		}
		for _, e := range existing {
			if err := db.store.Delete(e.ID, &CachedRoundSearch{}); err != nil {
				return err
			}
		}
		return db.store.Insert(bolthold.NextSequence(), c)
	})
}

// --- Settings ---

const settingsID uint64 = 1

func (db *Database) GetSettings() (*Settings, error) {
	var s Settings
	err := db.store.Get(settingsID, &s)
	if err == ErrNotFound {
		def := DefaultSettings()
		if err := db.withWriter(func() error { return db.store.Insert(settingsID, def) }); err != nil {
			return nil, err
		}
		return def, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *Database) PutSettings(s *Settings) error {
	return db.withWriter(func() error {
		s.ID = settingsID
		return db.store.Upsert(settingsID, s)
	})
}
