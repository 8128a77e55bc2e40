package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/racecarr/racecarr/internal/models"
)

// sabAdapter speaks SABnzbd's GET-based `mode=` API, grounded word for word
// on original_source/services/downloader_client.py's _send_sabnzbd/_test_sabnzbd.
type sabAdapter struct {
	downloader *models.Downloader
	httpClient *http.Client
}

func newSABAdapter(d *models.Downloader) *sabAdapter {
	return &sabAdapter{downloader: d, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type sabResponse struct {
	Status bool     `json:"status"`
	NZOIDs []string `json:"nzo_ids"`
	Error  string   `json:"error"`
}

func (a *sabAdapter) apiURL() string {
	return strings.TrimRight(a.downloader.BaseURL, "/") + "/api"
}

func (a *sabAdapter) Test(ctx context.Context) (bool, string) {
	params := url.Values{
		"mode":   {"queue"},
		"output": {"json"},
		"apikey": {a.downloader.APIKey},
	}
	resp, err := a.get(ctx, params)
	if err != nil {
		return false, fmt.Sprintf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("HTTP %d from SABnzbd", resp.StatusCode)
	}
	var data sabResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return false, fmt.Sprintf("unparseable SABnzbd response: %v", err)
	}
	return true, "SABnzbd OK"
}

func (a *sabAdapter) Send(ctx context.Context, nzbURL, title, category string, priority int) (string, error) {
	params := url.Values{
		"mode":   {"addurl"},
		"name":   {nzbURL},
		"output": {"json"},
		"apikey": {a.downloader.APIKey},
	}
	if category != "" {
		params.Set("cat", category)
	} else if a.downloader.Category != "" {
		params.Set("cat", a.downloader.Category)
	}
	if priority != 0 {
		params.Set("priority", strconv.Itoa(priority))
	} else if a.downloader.Priority != 0 {
		params.Set("priority", strconv.Itoa(a.downloader.Priority))
	}
	if title != "" {
		params.Set("nzbname", title)
	}

	resp, err := a.get(ctx, params)
	if err != nil {
		return "", &Error{Kind: "Unavailable", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Error{Kind: "AuthRejected", Retryable: false, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return "", &Error{Kind: "Unavailable", Retryable: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return "", &Error{Kind: "Rejected", Retryable: false, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var data sabResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", &Error{Kind: "Unknown", Retryable: false, Err: err}
	}
	if !data.Status {
		reason := data.Error
		if reason == "" {
			reason = "SABnzbd rejected request"
		}
		return "", &Error{Kind: "Rejected", Retryable: false, Err: fmt.Errorf("%s", reason)}
	}

	jobID := nzbURL
	if len(data.NZOIDs) > 0 {
		jobID = data.NZOIDs[0]
	}
	return jobID, nil
}

type sabHistoryResponse struct {
	History struct {
		Slots []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"slots"`
	} `json:"history"`
}

// Status scans the last 80 history slots for one whose name contains tag.
// SABnzbd's own history doesn't key by an id we control, so matching on the
// dispatch tag embedded in the sent nzbname is the same approach the
// original client used.
func (a *sabAdapter) Status(ctx context.Context, tag string) (JobStatus, error) {
	params := url.Values{
		"mode":   {"history"},
		"output": {"json"},
		"apikey": {a.downloader.APIKey},
		"limit":  {"80"},
	}
	resp, err := a.get(ctx, params)
	if err != nil {
		return JobUnknown, &Error{Kind: "Unavailable", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	var data sabHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return JobUnknown, &Error{Kind: "Unknown", Retryable: false, Err: err}
	}

	needle := strings.ToLower(tag)
	for _, slot := range data.History.Slots {
		if strings.Contains(strings.ToLower(slot.Name), needle) {
			return mapSABStatus(slot.Status), nil
		}
	}
	return JobUnknown, nil
}

func mapSABStatus(s string) JobStatus {
	switch strings.ToLower(s) {
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	case "queued":
		return JobQueued
	case "":
		return JobUnknown
	default:
		return JobDownloading
	}
}

func (a *sabAdapter) get(ctx context.Context, params url.Values) (*http.Response, error) {
	full := a.apiURL() + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	return a.httpClient.Do(req)
}
