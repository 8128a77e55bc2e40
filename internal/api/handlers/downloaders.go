package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/apierrors"
	"github.com/racecarr/racecarr/internal/downloader"
	"github.com/racecarr/racecarr/internal/models"
)

// DownloadersHandler is CRUD over configured SAB/NZBGet clients, plus a
// connectivity test action grounded on each adapter's Test method.
type DownloadersHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

func NewDownloadersHandler(db *models.Database, logger *logrus.Logger) *DownloadersHandler {
	return &DownloadersHandler{db: db, logger: logger}
}

func (h *DownloadersHandler) ServeCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rows, err := h.db.GetAllDownloaders()
		if err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, rows)
	case http.MethodPost:
		var d models.Downloader
		if err := decodeJSONBody(r, &d); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if d.Name == "" || d.BaseURL == "" {
			writeErrorResponse(w, apierrors.Validation("name and base_url are required"))
			return
		}
		if err := h.db.CreateDownloader(&d); err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, d)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DownloadersHandler) ServeItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/downloaders/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid downloader id"})
		return
	}

	if len(parts) == 2 && parts[1] == "test" && r.Method == http.MethodPost {
		h.test(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		d, err := h.db.GetDownloaderByID(id)
		if err != nil {
			writeErrorResponse(w, apierrors.NotFound("downloader not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, d)
	case http.MethodPut:
		existing, err := h.db.GetDownloaderByID(id)
		if err != nil {
			writeErrorResponse(w, apierrors.NotFound("downloader not found"))
			return
		}
		var patch models.Downloader
		if err := decodeJSONBody(r, &patch); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		patch.ID = existing.ID
		if err := h.db.UpdateDownloader(&patch); err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, patch)
	case http.MethodDelete:
		if err := h.db.DeleteDownloader(id); err != nil {
			writeErrorResponse(w, apierrors.NotFound("downloader not found"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DownloadersHandler) test(w http.ResponseWriter, r *http.Request, id uint64) {
	d, err := h.db.GetDownloaderByID(id)
	if err != nil {
		writeErrorResponse(w, apierrors.NotFound("downloader not found"))
		return
	}
	disp, err := downloader.NewDispatcher(d, h.logger)
	if err != nil {
		writeErrorResponse(w, apierrors.Wrap(apierrors.KindDownloader, "failed to build client", err))
		return
	}
	ok, detail := disp.Test(r.Context())
	writeJSONResponse(w, http.StatusOK, map[string]any{"ok": ok, "detail": detail})
}
