package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/models"
)

// HealthHandler answers liveness (/health, no dependency check) and
// readiness (/ready, checks the store is reachable) probes.
type HealthHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

func NewHealthHandler(db *models.Database, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ServeReady reports unready (503) when the store can't answer a cheap read,
// so an orchestrator won't route traffic at a process still opening its
// database file.
func (h *HealthHandler) ServeReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.db.GetSettings(); err != nil {
		h.logger.WithError(err).Warn("readiness check failed")
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}
