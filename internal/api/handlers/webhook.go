package handlers

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/models"
)

// WebhookHandler is the push-complement to the scheduler's poll loop
// (internal/scheduler/poll.go): a downloader that supports callbacks can hit
// this endpoint instead of waiting for the next poll tick. Both paths land
// on the same dispatch-tag match and the same state transition.
type WebhookHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

func NewWebhookHandler(db *models.Database, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{db: db, logger: logger}
}

// dispatchTagPattern extracts the "rc-{round_id}-{event_type}" tag embedded
// in every sent release's title (internal/scheduler.dispatchTag), for
// downloaders that only echo the job title back rather than a bare tag.
var dispatchTagPattern = regexp.MustCompile(`rc-(\d+)-([a-z]+)`)

type webhookPayload struct {
	Tag    string `json:"tag"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload webhookPayload
	if err := decodeJSONBody(r, &payload); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}

	tag := payload.Tag
	if tag == "" {
		tag = payload.Title
	}
	roundID, eventType, ok := parseDispatchTag(tag)
	if !ok {
		h.logger.WithField("tag", tag).Warn("webhook: could not extract dispatch tag")
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	entry, err := h.db.GetScheduledSearchByRoundAndType(roundID, eventType)
	if err != nil {
		h.logger.WithFields(logrus.Fields{"round_id": roundID, "event_type": eventType}).Warn("webhook: no matching watch")
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if entry.Status != models.StatusWaitingDownload {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	now := time.Now().UTC()
	switch strings.ToLower(payload.Status) {
	case "completed", "success":
		entry.Status = models.StatusCompleted
		entry.LastError = ""
		entry.NextRunAt = nil
	case "failed", "error":
		entry.Status = models.StatusScheduled
		entry.LastError = "downloader reported failure"
		entry.Attempts++
		next := now.Add(time.Hour)
		entry.NextRunAt = &next
	default:
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err := h.db.UpdateScheduledSearch(entry); err != nil {
		h.logger.WithError(err).Error("webhook: failed to persist entry")
		writeJSONResponse(w, http.StatusInternalServerError, errorResponse{Error: "failed to update entry"})
		return
	}

	h.updateHistory(entry, now)
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) updateHistory(entry *models.ScheduledSearch, polledAt time.Time) {
	event, err := h.db.GetEventByRoundAndType(entry.RoundID, entry.EventType)
	if err != nil {
		return
	}
	rows, err := h.db.GetDownloadHistoryByEvent(event.ID)
	if err != nil {
		return
	}
	for _, row := range rows {
		if row.NZBURL != entry.ChosenNZB {
			continue
		}
		if entry.Status == models.StatusCompleted {
			row.Status = models.HistoryCompleted
		} else {
			row.Status = models.HistoryFailed
		}
		row.LastPolledAt = &polledAt
		if err := h.db.UpdateDownloadHistory(row); err != nil {
			h.logger.WithError(err).Warn("webhook: failed to update download history")
		}
		return
	}
}

func parseDispatchTag(s string) (uint64, models.EventType, bool) {
	m := dispatchTagPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	roundID, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	for _, t := range []models.EventType{
		models.EventFP1, models.EventFP2, models.EventFP3, models.EventQualifying,
		models.EventSprint, models.EventSprintQualifying, models.EventRace,
	} {
		if strings.EqualFold(string(t), m[2]) {
			return roundID, t, true
		}
	}
	return 0, "", false
}
