// Package provider is the schedule metadata importer (C3). It treats the
// external provider as the opaque fetchSeason(year) function named in
// SPEC_FULL.md §1, and merges its response into the entity graph (internal/models).
// Grounded on original_source/backend/app/services/f1api.py for the exact
// provider JSON shape and null-tolerance behavior (SPEC_FULL.md S3), and on
// the teacher's net/http client idiom (internal/services/newznab/client.go)
// for the transport itself.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/models"
)

// sessionKeyToType mirrors original_source's SESSION_KEY_TO_TYPE table.
var sessionKeyToType = map[string]models.EventType{
	"race":          models.EventRace,
	"qualy":         models.EventQualifying,
	"fp1":           models.EventFP1,
	"fp2":           models.EventFP2,
	"fp3":           models.EventFP3,
	"sprintQualy":   models.EventSprintQualifying,
	"sprintRace":    models.EventSprint,
}

type rawSchedule map[string]rawSession

type rawSession struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Start    string `json:"start"`
	DateTime string `json:"datetime"`
	End      string `json:"end"`
}

type rawCircuit struct {
	City          string `json:"city"`
	Country       string `json:"country"`
	CircuitName   string `json:"circuitName"`
	Name          string `json:"name"`
	CircuitLength string `json:"circuitLength"`
}

type rawRace struct {
	Round    json.Number `json:"round"`
	RaceID   string      `json:"raceId"`
	RaceName string      `json:"raceName"`
	Name     string      `json:"name"`
	Circuit  rawCircuit  `json:"circuit"`
	Schedule rawSchedule `json:"schedule"`
}

type rawSeasonResponse struct {
	Races []rawRace `json:"races"`
}

// ProviderError distinguishes transient (retryable) from permanent schedule
// provider failures, per the taxonomy in SPEC_FULL.md §7.
type ProviderError struct {
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string { return e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// Client fetches season schedules from the F1 schedule provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (c *Client) fetchSeason(ctx context.Context, year int) (*rawSeasonResponse, error) {
	url := fmt.Sprintf("%s/api/%d", c.baseURL, year)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ProviderError{Transient: false, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Transient: true, Err: fmt.Errorf("provider request failed for %s: %w", url, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &ProviderError{Transient: true, Err: fmt.Errorf("provider responded %d for %s", resp.StatusCode, url)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Transient: false, Err: fmt.Errorf("provider responded %d for %s", resp.StatusCode, url)}
	}

	var payload rawSeasonResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &ProviderError{Transient: false, Err: fmt.Errorf("invalid provider payload: %w", err)}
	}

	return &payload, nil
}

// parseDateTime tolerates a trailing "Z", a combined date+time, or a bare date,
// mirroring original_source's _parse_dt / _extract_events.
func parseDateTime(date, timeStr, start, dateTime string) *time.Time {
	candidate := start
	if candidate == "" {
		candidate = dateTime
	}
	if candidate == "" && date != "" && timeStr != "" {
		candidate = date + "T" + timeStr
	} else if candidate == "" && date != "" {
		candidate = date
	}
	if candidate == "" {
		return nil
	}
	candidate = strings.TrimSuffix(candidate, "Z")

	layouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, candidate, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// RefreshSeason implements C3's RefreshSeason(year) operation: fetch, retry
// transient failures with exponential backoff, merge into the store.
func RefreshSeason(ctx context.Context, client *Client, db *models.Database, year int) (*models.Season, error) {
	var payload *rawSeasonResponse

	operation := func() error {
		p, err := client.fetchSeason(ctx, year)
		if err != nil {
			var perr *ProviderError
			if asProviderError(err, &perr) && !perr.Transient {
				return backoff.Permanent(err)
			}
			return err
		}
		payload = p
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.Multiplier = 2
	boCtx := backoff.WithMaxRetries(bo, 2) // 3 attempts total

	if err := backoff.Retry(operation, backoff.WithContext(boCtx, ctx)); err != nil {
		client.logger.WithError(err).WithField("year", year).Error("season refresh failed")
		return nil, err
	}

	season, err := db.GetSeasonByYear(year)
	if err != nil && err != models.ErrNotFound {
		return nil, err
	}
	if season == nil || err == models.ErrNotFound {
		season = &models.Season{Year: year}
		if err := db.CreateSeason(season); err != nil {
			return nil, fmt.Errorf("failed to create season: %w", err)
		}
	}

	existingRounds, err := db.GetRoundsBySeason(season.ID)
	if err != nil {
		return nil, err
	}
	existingByNumber := make(map[int]*models.Round, len(existingRounds))
	for _, r := range existingRounds {
		existingByNumber[r.RoundNumber] = r
	}

	for _, race := range payload.Races {
		roundNumber := 0
		if n, err := race.Round.Int64(); err == nil {
			roundNumber = int(n)
		}

		name := race.RaceName
		if name == "" {
			name = race.Name
		}
		if name == "" {
			name = fmt.Sprintf("Round %d", roundNumber)
		}

		circuitName := race.Circuit.CircuitName
		if circuitName == "" {
			circuitName = race.Circuit.Name
		}

		round, ok := existingByNumber[roundNumber]
		if !ok {
			round = &models.Round{SeasonID: season.ID, RoundNumber: roundNumber}
			round.Name = name
			round.Circuit = circuitName
			round.Country = race.Circuit.Country
			if err := db.CreateRound(round); err != nil {
				return nil, fmt.Errorf("failed to create round: %w", err)
			}
		} else {
			round.Name = name
			round.Circuit = circuitName
			round.Country = race.Circuit.Country
			if err := db.UpdateRound(round); err != nil {
				return nil, fmt.Errorf("failed to update round: %w", err)
			}
		}

		if err := mergeEvents(db, round.ID, race.Schedule); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	season.LastRefreshed = &now
	if err := db.UpdateSeason(season); err != nil {
		return nil, err
	}

	return season, nil
}

// mergeEvents upserts events by (round, type); nulls (missing keys) are
// tolerated and leave any existing row untouched, per SPEC_FULL.md S3.
func mergeEvents(db *models.Database, roundID uint64, schedule rawSchedule) error {
	for key, eventType := range sessionKeyToType {
		session, present := schedule[key]
		if !present || session == (rawSession{}) {
			continue
		}

		start := parseDateTime(session.Date, session.Time, session.Start, session.DateTime)
		var end *time.Time
		if session.End != "" {
			end = parseDateTime("", "", session.End, "")
		}

		existing, err := db.GetEventByRoundAndType(roundID, eventType)
		if err != nil && err != models.ErrNotFound {
			return err
		}
		if existing == nil || err == models.ErrNotFound {
			ev := &models.Event{
				RoundID:      roundID,
				Type:         eventType,
				StartTimeUTC: start,
				EndTimeUTC:   end,
			}
			if err := db.CreateEvent(ev); err != nil {
				return err
			}
		} else {
			existing.StartTimeUTC = start
			existing.EndTimeUTC = end
			if err := db.UpdateEvent(existing); err != nil {
				return err
			}
		}
	}
	return nil
}

func asProviderError(err error, target **ProviderError) bool {
	perr, ok := err.(*ProviderError)
	if ok {
		*target = perr
	}
	return ok
}
