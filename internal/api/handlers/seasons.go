package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/apierrors"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/provider"
)

// SeasonsHandler implements the season lifecycle named in SPEC_FULL.md §4.11:
// list, trigger a provider refresh, hide/restore (soft pause of the whole
// season's watches) and hard delete (cascades to rounds/events/searches via
// Database.DeleteSeason).
type SeasonsHandler struct {
	db       *models.Database
	provider *provider.Client
	logger   *logrus.Logger
}

func NewSeasonsHandler(db *models.Database, client *provider.Client, logger *logrus.Logger) *SeasonsHandler {
	return &SeasonsHandler{db: db, provider: client, logger: logger}
}

// ServeCollection handles GET /api/seasons (list) and POST /api/seasons
// (refresh a year, body: {"year": 2026}).
func (h *SeasonsHandler) ServeCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		seasons, err := h.db.GetAllSeasons()
		if err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, seasons)
	case http.MethodPost:
		var req struct {
			Year int `json:"year"`
		}
		if err := decodeJSONBody(r, &req); err != nil || req.Year <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "year is required"})
			return
		}
		season, err := provider.RefreshSeason(r.Context(), h.provider, h.db, req.Year)
		if err != nil {
			h.logger.WithError(err).WithField("year", req.Year).Error("seasons: refresh failed")
			writeErrorResponse(w, apierrors.Wrap(apierrors.KindProvider, "season refresh failed", err))
			return
		}
		writeJSONResponse(w, http.StatusOK, season)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ServeItem handles /api/seasons/{id}[/hide|/restore].
func (h *SeasonsHandler) ServeItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/seasons/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid season id"})
		return
	}

	if len(parts) == 2 {
		switch {
		case parts[1] == "hide" && r.Method == http.MethodPost:
			h.setHidden(w, id, true)
		case parts[1] == "restore" && r.Method == http.MethodPost:
			h.setHidden(w, id, false)
		default:
			http.NotFound(w, r)
		}
		return
	}

	if r.Method == http.MethodDelete {
		if err := h.db.DeleteSeason(id); err != nil {
			writeErrorResponse(w, apierrors.NotFound("season not found"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.NotFound(w, r)
}

func (h *SeasonsHandler) setHidden(w http.ResponseWriter, id uint64, hidden bool) {
	season, err := h.db.GetSeasonByID(id)
	if err != nil {
		writeErrorResponse(w, apierrors.NotFound("season not found"))
		return
	}
	season.IsHidden = hidden
	if err := h.db.UpdateSeason(season); err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, season)
}
