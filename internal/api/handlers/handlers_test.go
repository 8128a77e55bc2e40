package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/notify"
	"github.com/racecarr/racecarr/internal/scheduler"
	"github.com/racecarr/racecarr/internal/settings"
)

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buf).Encode(v))
	return buf
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealthHandler_LivenessAlwaysHealthy(t *testing.T) {
	db := newTestDB(t)
	h := NewHealthHandler(db, testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_ReadyReflectsStoreAccess(t *testing.T) {
	db := newTestDB(t)
	h := NewHealthHandler(db, testLogger())
	rec := httptest.NewRecorder()
	h.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusHandler_CountsByStatus(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateScheduledSearch(&models.ScheduledSearch{RoundID: 1, EventType: models.EventRace, Status: models.StatusScheduled, AddedAt: time.Now()}))
	require.NoError(t, db.CreateScheduledSearch(&models.ScheduledSearch{RoundID: 1, EventType: models.EventQualifying, Status: models.StatusPaused, AddedAt: time.Now()}))

	h := NewStatusHandler(db, testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, 1, resp.ScheduledSearches[models.StatusScheduled])
	require.Equal(t, 1, resp.ScheduledSearches[models.StatusPaused])
}

func TestSettingsHandler_GetSeedsDefaultsAndPutValidates(t *testing.T) {
	db := newTestDB(t)
	mgr := settings.New(db, testLogger())
	h := NewSettingsHandler(mgr)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Settings
	decodeBody(t, rec, &got)
	require.Equal(t, "info", got.LogLevel)

	got.LogLevel = "bogus"
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/settings", jsonBody(t, got))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexersHandler_CreateGetDelete(t *testing.T) {
	db := newTestDB(t)
	h := NewIndexersHandler(db)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/indexers", jsonBody(t, models.Indexer{Name: "nzb.su", BaseURL: "https://nzb.su", Enabled: true}))
	h.ServeCollection(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Indexer
	decodeBody(t, rec, &created)
	require.NotZero(t, created.ID)

	rec = httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodDelete, "/api/indexers/1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodGet, "/api/indexers/1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexersHandler_CreateRejectsMissingFields(t *testing.T) {
	db := newTestDB(t)
	h := NewIndexersHandler(db)
	rec := httptest.NewRecorder()
	h.ServeCollection(rec, httptest.NewRequest(http.MethodPost, "/api/indexers", jsonBody(t, models.Indexer{})))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchesHandler_CreatePauseResumeRunNow(t *testing.T) {
	db := newTestDB(t)
	sched := scheduler.New(db, testLogger(), notify.NewDispatcher(testLogger()), nil)
	h := NewSearchesHandler(db, sched)

	season := &models.Season{Year: 2026}
	require.NoError(t, db.CreateSeason(season))
	round := &models.Round{SeasonID: season.ID, RoundNumber: 1, Name: "Test GP"}
	require.NoError(t, db.CreateRound(round))
	start := time.Now().Add(48 * time.Hour)
	require.NoError(t, db.CreateEvent(&models.Event{RoundID: round.ID, Type: models.EventRace, StartTimeUTC: &start}))

	rec := httptest.NewRecorder()
	h.ServeCollection(rec, httptest.NewRequest(http.MethodPost, "/api/searches", jsonBody(t, createSearchRequest{RoundID: round.ID, EventType: models.EventRace})))
	require.Equal(t, http.StatusCreated, rec.Code)
	var entry models.ScheduledSearch
	decodeBody(t, rec, &entry)
	require.NotZero(t, entry.ID)

	rec = httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodPost, "/api/searches/1/pause", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &entry)
	require.Equal(t, models.StatusPaused, entry.Status)

	rec = httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodPost, "/api/searches/1/resume", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &entry)
	require.Equal(t, models.StatusScheduled, entry.Status)

	rec = httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodPost, "/api/searches/1/run-now", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSearchesHandler_PauseUnknownIDReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	sched := scheduler.New(db, testLogger(), notify.NewDispatcher(testLogger()), nil)
	h := NewSearchesHandler(db, sched)
	rec := httptest.NewRecorder()
	h.ServeItem(rec, httptest.NewRequest(http.MethodPost, "/api/searches/999/pause", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookHandler_CompletesMatchingWaitingDownloadEntry(t *testing.T) {
	db := newTestDB(t)
	season := &models.Season{Year: 2026}
	require.NoError(t, db.CreateSeason(season))
	round := &models.Round{ID: 7, SeasonID: season.ID, RoundNumber: 1, Name: "Test GP"}
	require.NoError(t, db.CreateRound(round))
	require.NoError(t, db.CreateEvent(&models.Event{RoundID: round.ID, Type: models.EventRace}))
	entry := &models.ScheduledSearch{RoundID: round.ID, EventType: models.EventRace, Status: models.StatusWaitingDownload, AddedAt: time.Now(), ChosenNZB: "https://example.test/nzb/x"}
	require.NoError(t, db.CreateScheduledSearch(entry))

	h := NewWebhookHandler(db, testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/downloader", jsonBody(t, webhookPayload{Tag: fmt.Sprintf("rc-%d-race", round.ID), Status: "completed"}))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := db.GetScheduledSearchByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, updated.Status)
}
