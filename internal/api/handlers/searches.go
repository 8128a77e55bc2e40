package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/racecarr/racecarr/internal/apierrors"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/scheduler"
)

// SearchesHandler is CRUD over ScheduledSearch watches plus the
// pause/resume/run-now operator actions that delegate to the scheduler
// (internal/scheduler.Pause/Resume/RunNow) so a single entry-level mutex
// guards every mutation, whether it came from a tick or from an operator.
type SearchesHandler struct {
	db   *models.Database
	sched *scheduler.Scheduler
}

func NewSearchesHandler(db *models.Database, sched *scheduler.Scheduler) *SearchesHandler {
	return &SearchesHandler{db: db, sched: sched}
}

type createSearchRequest struct {
	RoundID          uint64                   `json:"round_id"`
	EventType        models.EventType         `json:"event_type"`
	DownloaderID     *uint64                  `json:"downloader_id"`
	QualityOverrides *models.QualityOverrides `json:"quality_overrides"`
}

func (h *SearchesHandler) ServeCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rows, err := h.db.GetAllScheduledSearches()
		if err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, rows)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SearchesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSearchRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.RoundID == 0 || req.EventType == "" {
		writeErrorResponse(w, apierrors.Validation("round_id and event_type are required"))
		return
	}
	round, err := h.db.GetRoundByID(req.RoundID)
	if err != nil {
		writeErrorResponse(w, apierrors.NotFound("round not found"))
		return
	}

	settings, err := h.db.GetSettings()
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	var start *time.Time
	if event, err := h.db.GetEventByRoundAndType(round.ID, req.EventType); err == nil {
		start = event.StartTimeUTC
	}
	now := time.Now().UTC()
	nextRun := scheduler.ComputeNextRun(start, now, settings)

	entry := &models.ScheduledSearch{
		RoundID:          req.RoundID,
		EventType:        req.EventType,
		Status:           models.StatusScheduled,
		DownloaderID:     req.DownloaderID,
		QualityOverrides: req.QualityOverrides,
		AddedAt:          now,
		NextRunAt:        &nextRun,
	}
	if err := h.db.CreateScheduledSearch(entry); err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, entry)
}

func (h *SearchesHandler) ServeItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/searches/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid scheduled search id"})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		switch parts[1] {
		case "pause":
			h.respondAction(w, h.sched.Pause(id), id)
		case "resume":
			h.respondAction(w, h.sched.Resume(id), id)
		case "run-now":
			h.respondAction(w, h.sched.RunNow(r.Context(), id), id)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		entry, err := h.db.GetScheduledSearchByID(id)
		if err != nil {
			writeErrorResponse(w, apierrors.NotFound("scheduled search not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, entry)
	case http.MethodPut:
		existing, err := h.db.GetScheduledSearchByID(id)
		if err != nil {
			writeErrorResponse(w, apierrors.NotFound("scheduled search not found"))
			return
		}
		var patch struct {
			DownloaderID     *uint64                  `json:"downloader_id"`
			QualityOverrides *models.QualityOverrides `json:"quality_overrides"`
		}
		if err := decodeJSONBody(r, &patch); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		existing.DownloaderID = patch.DownloaderID
		existing.QualityOverrides = patch.QualityOverrides
		if err := h.db.UpdateScheduledSearch(existing); err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, existing)
	case http.MethodDelete:
		if err := h.db.DeleteScheduledSearch(id); err != nil {
			writeErrorResponse(w, apierrors.NotFound("scheduled search not found"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SearchesHandler) respondAction(w http.ResponseWriter, err error, id uint64) {
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	entry, getErr := h.db.GetScheduledSearchByID(id)
	if getErr != nil {
		writeErrorResponse(w, getErr)
		return
	}
	writeJSONResponse(w, http.StatusOK, entry)
}
