package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/racecarr/racecarr/internal/models"
)

// nzbgetAdapter speaks NZBGet's JSON-RPC API over basic auth, grounded word
// for word on original_source/services/downloader_client.py's
// _send_nzbget/_test_nzbget, including the exact appendurl param order:
// [name, nzb_url, category, priority, addPaused, dupeKey, dupeScore, dupeMode].
type nzbgetAdapter struct {
	downloader *models.Downloader
	httpClient *http.Client
}

func newNZBGetAdapter(d *models.Downloader) *nzbgetAdapter {
	return &nzbgetAdapter{downloader: d, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
	ID     int           `json:"id"`
}

type rpcResponse struct {
	Result interface{} `json:"result"`
	Error  interface{} `json:"error"`
}

func (a *nzbgetAdapter) url() string {
	return strings.TrimRight(a.downloader.BaseURL, "/") + "/jsonrpc"
}

func (a *nzbgetAdapter) call(ctx context.Context, method string, params []interface{}) (*rpcResponse, *http.Response, error) {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params, ID: 1})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url(), bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.downloader.APIKey != "" {
		req.SetBasicAuth(a.downloader.APIKey, "")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	var parsed rpcResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr != nil {
		resp.Body.Close()
		return nil, resp, decodeErr
	}
	resp.Body.Close()
	return &parsed, resp, nil
}

func (a *nzbgetAdapter) Test(ctx context.Context) (bool, string) {
	parsed, resp, err := a.call(ctx, "version", nil)
	if err != nil {
		return false, fmt.Sprintf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("HTTP %d from NZBGet", resp.StatusCode)
	}
	if parsed.Error != nil {
		return false, fmt.Sprintf("NZBGet error: %v", parsed.Error)
	}
	if parsed.Result == nil {
		return false, "unexpected NZBGet response"
	}
	return true, "NZBGet OK"
}

func (a *nzbgetAdapter) Send(ctx context.Context, nzbURL, title, category string, priority int) (string, error) {
	name := title
	if name == "" {
		name = nzbURL
	}
	if category == "" {
		category = a.downloader.Category
	}
	if priority == 0 {
		priority = a.downloader.Priority
	}

	params := []interface{}{name, nzbURL, category, priority, false, name, 0, "score"}

	parsed, resp, err := a.call(ctx, "appendurl", params)
	if err != nil {
		return "", &Error{Kind: "Unavailable", Retryable: true, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Error{Kind: "AuthRejected", Retryable: false, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return "", &Error{Kind: "Unavailable", Retryable: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return "", &Error{Kind: "Rejected", Retryable: false, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if parsed.Error != nil {
		return "", &Error{Kind: "BadCategory", Retryable: false, Err: fmt.Errorf("%v", parsed.Error)}
	}
	accepted, _ := parsed.Result.(bool)
	if !accepted {
		return "", &Error{Kind: "Rejected", Retryable: false, Err: fmt.Errorf("NZBGet rejected request")}
	}

	return name, nil
}

// Status scans the NZBGet history for an entry whose NZBName contains tag,
// the same tag-matching approach as the SAB adapter since neither downloader
// hands back an id this package can poll directly.
func (a *nzbgetAdapter) Status(ctx context.Context, tag string) (JobStatus, error) {
	parsed, resp, err := a.call(ctx, "history", []interface{}{false})
	if err != nil {
		return JobUnknown, &Error{Kind: "Unavailable", Retryable: true, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return JobUnknown, &Error{Kind: "Unavailable", Retryable: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if parsed.Error != nil {
		return JobUnknown, &Error{Kind: "Unknown", Retryable: false, Err: fmt.Errorf("%v", parsed.Error)}
	}

	items, _ := parsed.Result.([]interface{})
	needle := strings.ToLower(tag)
	for _, raw := range items {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["NZBName"].(string)
		if !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		status, _ := entry["Status"].(string)
		return mapNZBGetStatus(status), nil
	}
	return JobUnknown, nil
}

func mapNZBGetStatus(s string) JobStatus {
	up := strings.ToUpper(s)
	switch {
	case up == "":
		return JobUnknown
	case strings.HasPrefix(up, "SUCCESS"):
		return JobCompleted
	case strings.HasPrefix(up, "FAILURE"), strings.HasPrefix(up, "DELETED"):
		return JobFailed
	default:
		return JobDownloading
	}
}
