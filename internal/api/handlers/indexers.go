package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/racecarr/racecarr/internal/apierrors"
	"github.com/racecarr/racecarr/internal/models"
)

// IndexersHandler is CRUD over configured Newznab-compatible endpoints.
type IndexersHandler struct {
	db *models.Database
}

func NewIndexersHandler(db *models.Database) *IndexersHandler {
	return &IndexersHandler{db: db}
}

func (h *IndexersHandler) ServeCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rows, err := h.db.GetAllIndexers()
		if err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, rows)
	case http.MethodPost:
		var idx models.Indexer
		if err := decodeJSONBody(r, &idx); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if idx.Name == "" || idx.BaseURL == "" {
			writeErrorResponse(w, apierrors.Validation("name and base_url are required"))
			return
		}
		if err := h.db.CreateIndexer(&idx); err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, idx)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *IndexersHandler) ServeItem(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/indexers/")
	id, err := strconv.ParseUint(strings.Trim(idStr, "/"), 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid indexer id"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		idx, err := h.db.GetIndexerByID(id)
		if err != nil {
			writeErrorResponse(w, apierrors.NotFound("indexer not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, idx)
	case http.MethodPut:
		existing, err := h.db.GetIndexerByID(id)
		if err != nil {
			writeErrorResponse(w, apierrors.NotFound("indexer not found"))
			return
		}
		var patch models.Indexer
		if err := decodeJSONBody(r, &patch); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		patch.ID = existing.ID
		if err := h.db.UpdateIndexer(&patch); err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, patch)
	case http.MethodDelete:
		if err := h.db.DeleteIndexer(id); err != nil {
			writeErrorResponse(w, apierrors.NotFound("indexer not found"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
