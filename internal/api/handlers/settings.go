package handlers

import (
	"net/http"

	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/settings"
)

// SettingsHandler exposes GET/PUT on the single persisted settings row
// (internal/settings.Manager).
type SettingsHandler struct {
	mgr *settings.Manager
}

func NewSettingsHandler(mgr *settings.Manager) *SettingsHandler {
	return &SettingsHandler{mgr: mgr}
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s, err := h.mgr.Get()
		if err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, s)
	case http.MethodPut:
		patch := &models.Settings{ID: 1}
		if err := decodeJSONBody(r, patch); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		patch.ID = 1
		updated, err := h.mgr.Update(patch)
		if err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, updated)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
