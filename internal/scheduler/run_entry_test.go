package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/newznab"
	"github.com/racecarr/racecarr/internal/notify"
	"github.com/racecarr/racecarr/internal/search"
)

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestScheduler(t *testing.T, db *models.Database) *Scheduler {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(db, logger, notify.NewDispatcher(logger), nil)
}

// seedRaceEntry creates a Season/Round/Event/ScheduledSearch graph for one
// already-started Race event, returning the ScheduledSearch.
func seedRaceEntry(t *testing.T, db *models.Database, start time.Time) *models.ScheduledSearch {
	t.Helper()
	season := &models.Season{Year: 2025}
	require.NoError(t, db.CreateSeason(season))

	round := &models.Round{SeasonID: season.ID, RoundNumber: 3, Name: "Bahrain Grand Prix", Circuit: "Bahrain International Circuit", Country: "Bahrain"}
	require.NoError(t, db.CreateRound(round))

	event := &models.Event{RoundID: round.ID, Type: models.EventRace, StartTimeUTC: &start}
	require.NoError(t, db.CreateEvent(event))

	entry := &models.ScheduledSearch{RoundID: round.ID, EventType: models.EventRace, Status: models.StatusScheduled, AddedAt: time.Now().UTC()}
	require.NoError(t, db.CreateScheduledSearch(entry))
	return entry
}

type fixedSearcher struct {
	items []newznab.Item
}

func (f fixedSearcher) Search(ctx context.Context, q newznab.Query) ([]newznab.Item, error) {
	return f.items, nil
}

func raceItem(title string, sizeGB int) newznab.Item {
	return newznab.Item{
		Title:     title,
		Link:      "https://example-indexer.test/nzb/" + title,
		Enclosure: newznab.Enclosure{URL: "https://example-indexer.test/nzb/" + title, Length: int64(sizeGB) * 1024 * 1024 * 1024},
	}
}

func newSABTestServer(t *testing.T, historyStatus string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("mode")
		switch mode {
		case "addurl":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"status": true, "nzo_ids": []string{"SABnzbd_nzo_1"}})
		case "history":
			w.Header().Set("Content-Type", "application/json")
			slots := []map[string]string{}
			if historyStatus != "" {
				slots = append(slots, map[string]string{"name": "placeholder [rc-3-race]", "status": historyStatus})
			}
			json.NewEncoder(w).Encode(map[string]any{"history": map[string]any{"slots": slots}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func seedSABDownloader(t *testing.T, db *models.Database, srv *httptest.Server) *models.Downloader {
	t.Helper()
	d := &models.Downloader{Name: "sab", Kind: models.DownloaderSAB, BaseURL: srv.URL, APIKey: "secret", Category: "tv", Enabled: true}
	require.NoError(t, db.CreateDownloader(d))
	return d
}

func TestRunEntry_AutoGrabAboveThreshold(t *testing.T) {
	db := newTestDB(t)
	sched := newTestScheduler(t, db)

	start := time.Now().UTC().Add(-2 * time.Hour)
	entry := seedRaceEntry(t, db, start)

	srv := newSABTestServer(t, "")
	defer srv.Close()
	downloaderRow := seedSABDownloader(t, db, srv)

	settings := models.DefaultSettings()
	settings.DefaultDownloaderID = &downloaderRow.ID

	items := []newznab.Item{
		raceItem("Formula.1.2025.Round03.Bahrain.Race.2160p.x265-NTb", 4),
		raceItem("Formula.1.2025.Round03.Bahrain.Race.480p-GROUP", 1),
	}
	indexers := map[uint64]search.IndexerSearcher{1: fixedSearcher{items: items}}
	names := map[uint64]string{1: "test-indexer"}
	priority := map[uint64]int{1: 1}

	sched.runEntryLocked(context.Background(), entry, settings, indexers, names, priority)

	got, err := db.GetScheduledSearchByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitingDownload, got.Status)
	require.NotEmpty(t, got.ChosenNZB)
	require.NotNil(t, got.DownloaderID)
	require.Equal(t, downloaderRow.ID, *got.DownloaderID)

	event, err := db.GetEventByRoundAndType(entry.RoundID, entry.EventType)
	require.NoError(t, err)
	history, err := db.GetDownloadHistoryByEvent(event.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.HistorySent, history[0].Status)
}

func TestRunEntry_BelowThresholdStaysScheduled(t *testing.T) {
	db := newTestDB(t)
	sched := newTestScheduler(t, db)

	start := time.Now().UTC().Add(-2 * time.Hour)
	entry := seedRaceEntry(t, db, start)

	settings := models.DefaultSettings()
	settings.AutoDownloadThreshold = 1000 // unreachable, forces below-threshold path

	items := []newznab.Item{raceItem("Formula.1.2025.Round03.Bahrain.Race.1080p-GROUP", 2)}
	indexers := map[uint64]search.IndexerSearcher{1: fixedSearcher{items: items}}
	names := map[uint64]string{1: "test-indexer"}
	priority := map[uint64]int{1: 1}

	sched.runEntryLocked(context.Background(), entry, settings, indexers, names, priority)

	got, err := db.GetScheduledSearchByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusScheduled, got.Status)
	require.Empty(t, got.ChosenNZB)
	require.NotNil(t, got.NextRunAt)
}

func TestRunEntry_GatedBeforeFirstSearchWindow(t *testing.T) {
	db := newTestDB(t)
	sched := newTestScheduler(t, db)

	start := time.Now().UTC().Add(5 * time.Minute) // within the 30-minute gate
	entry := seedRaceEntry(t, db, start)

	settings := models.DefaultSettings()
	indexers := map[uint64]search.IndexerSearcher{}
	names := map[uint64]string{}
	priority := map[uint64]int{}

	sched.runEntryLocked(context.Background(), entry, settings, indexers, names, priority)

	got, err := db.GetScheduledSearchByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusScheduled, got.Status)
	require.NotNil(t, got.NextRunAt)
	require.WithinDuration(t, start.Add(30*time.Minute), *got.NextRunAt, time.Second)
}

func TestRunEntry_StopAfterDaysExpires(t *testing.T) {
	db := newTestDB(t)
	sched := newTestScheduler(t, db)

	start := time.Now().UTC().Add(-20 * 24 * time.Hour) // well past the 14-day default
	entry := seedRaceEntry(t, db, start)

	settings := models.DefaultSettings()
	indexers := map[uint64]search.IndexerSearcher{}
	names := map[uint64]string{}
	priority := map[uint64]int{}

	sched.runEntryLocked(context.Background(), entry, settings, indexers, names, priority)

	got, err := db.GetScheduledSearchByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, got.Status)
	require.Equal(t, "Expired", got.LastError)
	require.Nil(t, got.NextRunAt)
}

func TestRunEntry_AllIndexersFailedBacksOff(t *testing.T) {
	db := newTestDB(t)
	sched := newTestScheduler(t, db)

	start := time.Now().UTC().Add(-2 * time.Hour)
	entry := seedRaceEntry(t, db, start)

	settings := models.DefaultSettings()
	indexers := map[uint64]search.IndexerSearcher{1: failingSearcherStub{}}
	names := map[uint64]string{1: "test-indexer"}
	priority := map[uint64]int{1: 1}

	sched.runEntryLocked(context.Background(), entry, settings, indexers, names, priority)

	got, err := db.GetScheduledSearchByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusScheduled, got.Status)
	require.Equal(t, "all indexers unavailable", got.LastError)
	require.NotNil(t, got.NextRunAt)
	require.True(t, got.NextRunAt.After(time.Now().UTC()))
}

type failingSearcherStub struct{}

func (failingSearcherStub) Search(ctx context.Context, q newznab.Query) ([]newznab.Item, error) {
	return nil, context.DeadlineExceeded
}

func TestPauseIfHiddenSeason_PausesAndSkips(t *testing.T) {
	db := newTestDB(t)
	sched := newTestScheduler(t, db)

	season := &models.Season{Year: 2025, IsHidden: true}
	require.NoError(t, db.CreateSeason(season))
	round := &models.Round{SeasonID: season.ID, RoundNumber: 1, Name: "Hidden GP"}
	require.NoError(t, db.CreateRound(round))
	entry := &models.ScheduledSearch{RoundID: round.ID, EventType: models.EventRace, Status: models.StatusScheduled, AddedAt: time.Now().UTC()}
	require.NoError(t, db.CreateScheduledSearch(entry))

	skipped := sched.pauseIfHiddenSeason(entry)
	require.True(t, skipped)

	got, err := db.GetScheduledSearchByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPaused, got.Status)
	require.Nil(t, got.NextRunAt)
}

func TestPauseResumeRunNow(t *testing.T) {
	db := newTestDB(t)
	sched := newTestScheduler(t, db)

	start := time.Now().UTC().Add(-2 * time.Hour)
	entry := seedRaceEntry(t, db, start)

	require.NoError(t, sched.Pause(entry.ID))
	got, err := db.GetScheduledSearchByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPaused, got.Status)

	require.Error(t, sched.Pause(entry.ID+999)) // unknown id

	require.NoError(t, sched.Resume(entry.ID))
	got, err = db.GetScheduledSearchByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusScheduled, got.Status)
	require.NotNil(t, got.NextRunAt)

	require.Error(t, sched.RunNow(context.Background(), entry.ID)) // no indexers configured
}

func TestComputeNextRun_ExportedWrapperMatchesInternal(t *testing.T) {
	s := settingsFixture()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, computeNextRun(nil, now, s), ComputeNextRun(nil, now, s))
}
