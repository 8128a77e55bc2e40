package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/apierrors"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/newznab"
	"github.com/racecarr/racecarr/internal/scheduler"
	"github.com/racecarr/racecarr/internal/search"
)

// RoundHandler serves the manual, operator-triggered round-level actions
// named in SPEC_FULL.md §4.11: a cached/force-bypassable search across a
// round's sessions, and an auto-grab that runs one or more of the round's
// watches immediately outside their normal cadence.
type RoundHandler struct {
	db      *models.Database
	sched   *scheduler.Scheduler
	logger  *logrus.Logger
	metrics scheduler.Recorder
}

func NewRoundHandler(db *models.Database, sched *scheduler.Scheduler, metrics scheduler.Recorder, logger *logrus.Logger) *RoundHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &RoundHandler{db: db, sched: sched, logger: logger, metrics: metrics}
}

type noopMetrics struct{}

func (noopMetrics) TickStarted()                   {}
func (noopMetrics) EntriesPicked(n int)             {}
func (noopMetrics) SearchDispatched(indexer string) {}
func (noopMetrics) CacheResult(hit bool)            {}
func (noopMetrics) AutoGrabSent()                   {}
func (noopMetrics) NotificationResult(ok bool)      {}

// ServeRoundAction dispatches /api/rounds/{id}/search and
// /api/rounds/{id}/auto-grab.
func (h *RoundHandler) ServeRoundAction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rounds/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	roundID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid round id"})
		return
	}

	switch parts[1] {
	case "search":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.search(w, r, roundID)
	case "auto-grab":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.autoGrab(w, r, roundID)
	default:
		http.NotFound(w, r)
	}
}

func (h *RoundHandler) loadRoundMeta(roundID uint64) (*models.Round, search.RoundMeta, error) {
	round, err := h.db.GetRoundByID(roundID)
	if err != nil {
		return nil, search.RoundMeta{}, apierrors.NotFound("round not found")
	}
	season, err := h.db.GetSeasonByID(round.SeasonID)
	if err != nil {
		return nil, search.RoundMeta{}, apierrors.NotFound("season not found")
	}
	return round, search.RoundMeta{
		Year: season.Year, RoundNumber: round.RoundNumber,
		Name: round.Name, Circuit: round.Circuit, Country: round.Country,
	}, nil
}

func (h *RoundHandler) buildIndexerClients(settings *models.Settings) (map[uint64]search.IndexerSearcher, map[uint64]string, map[uint64]int) {
	enabled, err := h.db.GetEnabledIndexers()
	if err != nil {
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
		clients[idx.ID] = newznab.NewClient(idx, concurrency, h.logger)
		names[idx.ID] = idx.Name
		priority[idx.ID] = idx.Priority
	}
	return clients, names, priority
}

// search runs (or returns the cached result of) a session's query set
// against every enabled indexer. Query params: session (required canonical
// name, e.g. "Race"), force=true bypasses the cache.
func (h *RoundHandler) search(w http.ResponseWriter, r *http.Request, roundID uint64) {
	sessionCanonical := r.URL.Query().Get("session")
	if sessionCanonical == "" {
		writeErrorResponse(w, apierrors.Validation("session query parameter is required"))
		return
	}
	force := r.URL.Query().Get("force") == "true"

	_, roundMeta, err := h.loadRoundMeta(roundID)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	settings, err := h.db.GetSettings()
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	fingerprint := search.AllowlistFingerprint(eventAllowlistStrings(settings.EventAllowlist))
	cache := search.NewRoundCache(h.db)
	if cached, hit := cache.Get(roundID, fingerprint, force); hit {
		h.metrics.CacheResult(true)
		writeJSONResponse(w, http.StatusOK, map[string]any{"scored": cached, "cached": true})
		return
	}
	h.metrics.CacheResult(false)

	indexers, names, priority := h.buildIndexerClients(settings)
	if len(indexers) == 0 {
		writeErrorResponse(w, apierrors.Configuration("no enabled indexers configured"))
		return
	}

	result := search.RunRoundSearchManual(r.Context(), h.logger, roundMeta, sessionCanonical, nil, indexers, names, settings, priority)
	if result.AllIndexersFailed() {
		writeErrorResponse(w, apierrors.Wrap(apierrors.KindIndexer, "all indexers unavailable", nil))
		return
	}
	if err := cache.Put(roundID, fingerprint, result.Scored, 24); err != nil {
		h.logger.WithError(err).Warn("round search: failed to cache result")
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"scored": result.Scored, "cached": false})
}

func eventAllowlistStrings(allowlist []models.EventType) []string {
	out := make([]string, len(allowlist))
	for i, e := range allowlist {
		out[i] = string(e)
	}
	return out
}

// autoGrab fans out scheduler.RunNow over one round's watches, optionally
// restricted to a single event type. Each entry's run-now is serialized by
// its own entry-level mutex (scheduler.lockFor), so grabs for distinct
// events in the same round proceed independently while two grabs for the
// same event can never race.
func (h *RoundHandler) autoGrab(w http.ResponseWriter, r *http.Request, roundID uint64) {
	eventTypeFilter := models.EventType(r.URL.Query().Get("event_type"))

	events, err := h.db.GetEventsByRound(roundID)
	if err != nil {
		writeErrorResponse(w, apierrors.NotFound("round not found"))
		return
	}

	results := make(map[string]string)
	for _, event := range events {
		if eventTypeFilter != "" && event.Type != eventTypeFilter {
			continue
		}
		entry, err := h.db.GetScheduledSearchByRoundAndType(roundID, event.Type)
		if err != nil {
			results[string(event.Type)] = "no watch configured"
			continue
		}
		if err := h.sched.RunNow(r.Context(), entry.ID); err != nil {
			results[string(event.Type)] = "error: " + err.Error()
			continue
		}
		results[string(event.Type)] = "grabbed"
	}
	if len(results) == 0 {
		writeErrorResponse(w, apierrors.Validation("no matching events for this round"))
		return
	}
	writeJSONResponse(w, http.StatusAccepted, results)
}
