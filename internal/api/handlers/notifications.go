package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/racecarr/racecarr/internal/apierrors"
	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/notify"
)

// NotificationsHandler is CRUD over Apprise/webhook notification targets,
// plus a /test action that fires models.EventTest at one target.
type NotificationsHandler struct {
	db       *models.Database
	notifier *notify.Dispatcher
}

func NewNotificationsHandler(db *models.Database, notifier *notify.Dispatcher) *NotificationsHandler {
	return &NotificationsHandler{db: db, notifier: notifier}
}

func (h *NotificationsHandler) ServeCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rows, err := h.db.GetAllNotificationTargets()
		if err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, rows)
	case http.MethodPost:
		var n models.NotificationTarget
		if err := decodeJSONBody(r, &n); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if n.URL == "" {
			writeErrorResponse(w, apierrors.Validation("url is required"))
			return
		}
		if err := h.db.CreateNotificationTarget(&n); err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, n)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *NotificationsHandler) ServeItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid notification target id"})
		return
	}

	if len(parts) == 2 && parts[1] == "test" && r.Method == http.MethodPost {
		h.test(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodPut:
		existing, err := h.getByID(id)
		if err != nil {
			writeErrorResponse(w, apierrors.NotFound("notification target not found"))
			return
		}
		var patch models.NotificationTarget
		if err := decodeJSONBody(r, &patch); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		patch.ID = existing.ID
		if err := h.db.UpdateNotificationTarget(&patch); err != nil {
			writeErrorResponse(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, patch)
	case http.MethodDelete:
		if err := h.db.DeleteNotificationTarget(id); err != nil {
			writeErrorResponse(w, apierrors.NotFound("notification target not found"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *NotificationsHandler) getByID(id uint64) (*models.NotificationTarget, error) {
	all, err := h.db.GetAllNotificationTargets()
	if err != nil {
		return nil, err
	}
	for _, n := range all {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, apierrors.NotFound("notification target not found")
}

func (h *NotificationsHandler) test(w http.ResponseWriter, r *http.Request, id uint64) {
	target, err := h.getByID(id)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	errs := h.notifier.Send(r.Context(), []*models.NotificationTarget{target}, models.EventTest, "Test notification", "This is a test from the request surface", nil)
	writeJSONResponse(w, http.StatusOK, map[string]any{"ok": len(errs) == 0, "errors": errs})
}
