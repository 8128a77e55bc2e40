package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/models"
)

// StatusHandler summarizes the scheduler's current working set: how many
// watches sit in each state and how many acquisitions are in each stage of
// their lifecycle, an operator-facing snapshot of the per-entry state
// machine (internal/scheduler).
type StatusHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

func NewStatusHandler(db *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{db: db, logger: logger}
}

type statusResponse struct {
	ScheduledSearches map[models.ScheduledSearchStatus]int `json:"scheduled_searches"`
	DownloadHistory   map[models.DownloadHistoryStatus]int `json:"download_history"`
}

var allScheduledSearchStatuses = []models.ScheduledSearchStatus{
	models.StatusScheduled, models.StatusRunning, models.StatusWaitingDownload,
	models.StatusCompleted, models.StatusFailed, models.StatusPaused,
}

var allDownloadHistoryStatuses = []models.DownloadHistoryStatus{
	models.HistorySent, models.HistoryDownloading, models.HistoryCompleted, models.HistoryFailed,
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		ScheduledSearches: make(map[models.ScheduledSearchStatus]int),
		DownloadHistory:   make(map[models.DownloadHistoryStatus]int),
	}

	for _, status := range allScheduledSearchStatuses {
		rows, err := h.db.GetScheduledSearchesByStatus(status)
		if err != nil {
			h.logger.WithError(err).Error("status: failed to count scheduled searches")
			writeErrorResponse(w, err)
			return
		}
		resp.ScheduledSearches[status] = len(rows)
	}

	for _, status := range allDownloadHistoryStatuses {
		rows, err := h.db.GetDownloadHistoryByStatus(status)
		if err != nil {
			h.logger.WithError(err).Error("status: failed to count download history")
			writeErrorResponse(w, err)
			return
		}
		resp.DownloadHistory[status] = len(rows)
	}

	writeJSONResponse(w, http.StatusOK, resp)
}
