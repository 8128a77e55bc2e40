// Package newznab is the per-indexer HTTP client (C4). It generalizes the
// teacher's single-indexer internal/services/newznab/client.go into a set
// keyed by models.Indexer, adding per-indexer and global concurrency caps and
// retry-with-backoff (SPEC_FULL.md §4.3).
package newznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/models"
)

// Response is the tolerant XML shape of a Newznab RSS search response.
type Response struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title string `xml:"title"`
	Items []Item `xml:"item"`
}

type Item struct {
	Title      string      `xml:"title"`
	Link       string      `xml:"link"`
	GUID       string      `xml:"guid"`
	PubDate    string      `xml:"pubDate"`
	Category   string      `xml:"category"`
	Enclosure  Enclosure   `xml:"enclosure"`
	Attributes []Attribute `xml:"attr"`
}

type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type Attribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func GetAttributeValue(item Item, name string) string {
	for _, a := range item.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a.Value
		}
	}
	return ""
}

func GetAttributeInt64(item Item, name string) int64 {
	v := GetAttributeValue(item, name)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// IndexerError subclasses the kinds named in SPEC_FULL.md §7.
type IndexerError struct {
	Kind      string // AuthRejected | RateLimited | Unavailable | BadRequest | Parse
	Retryable bool
	Err       error
}

func (e *IndexerError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *IndexerError) Unwrap() error { return e.Err }

// Query is one fan-out query built by internal/search.
type Query struct {
	RawQuery string // free-text q parameter
	Type     string // "search" or "tvsearch"
	Category string // comma-joined category ids
	Season   int    // for t=tvsearch
	Episode  int    // for t=tvsearch
	MaxAge   int    // days
}

// Client issues requests against one configured indexer, respecting its own
// concurrency semaphore.
type Client struct {
	indexer    *models.Indexer
	httpClient *http.Client
	logger     *logrus.Logger
	sem        chan struct{}
}

// NewClient builds a client for one indexer with a per-indexer concurrency
// semaphore sized concurrency (default 1, SPEC_FULL.md §4.3).
func NewClient(indexer *models.Indexer, concurrency int, logger *logrus.Logger) *Client {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Client{
		indexer:    indexer,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		sem:        make(chan struct{}, concurrency),
	}
}

func (c *Client) apiURL() (*url.URL, error) {
	u, err := url.Parse(c.indexer.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid indexer base url: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api"
	}
	return u, nil
}

// Search runs one query against this indexer, retrying transient failures 3x
// with exponential backoff 1s->8s and +-25% jitter (SPEC_FULL.md §4.3). HTTP
// 4xx is fatal for that call.
func (c *Client) Search(ctx context.Context, q Query) ([]Item, error) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	apiURL, err := c.apiURL()
	if err != nil {
		return nil, &IndexerError{Kind: "BadRequest", Retryable: false, Err: err}
	}

	params := url.Values{}
	params.Set("t", q.Type)
	if c.indexer.APIKey != "" {
		params.Set("apikey", c.indexer.APIKey)
	}
	if q.RawQuery != "" {
		params.Set("q", q.RawQuery)
	}
	if len(c.indexer.CategoryIDs) > 0 {
		params.Set("cat", strings.Join(c.indexer.CategoryIDs, ","))
	}
	if q.MaxAge > 0 {
		params.Set("maxage", strconv.Itoa(q.MaxAge))
	}
	if q.Type == "tvsearch" {
		if q.Season > 0 {
			params.Set("season", strconv.Itoa(q.Season))
		}
		if q.Episode > 0 {
			params.Set("ep", strconv.Itoa(q.Episode))
		}
	}
	apiURL.RawQuery = params.Encode()

	var items []Item
	operation := func() error {
		its, err := c.doSearch(ctx, apiURL.String())
		if err != nil {
			var ierr *IndexerError
			if asIndexerError(err, &ierr) && !ierr.Retryable {
				return backoff.Permanent(err)
			}
			return err
		}
		items = its
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 8 * time.Second
	bo.RandomizationFactor = 0.25
	bounded := backoff.WithMaxRetries(bo, 2) // 3 attempts total

	if err := backoff.Retry(operation, backoff.WithContext(bounded, ctx)); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) doSearch(ctx context.Context, rawURL string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &IndexerError{Kind: "BadRequest", Retryable: false, Err: err}
	}
	req.Header.Set("User-Agent", "racecarrd/1.0")

	c.logger.WithFields(logrus.Fields{
		"indexer": c.indexer.Name,
	}).Debug("newznab search request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &IndexerError{Kind: "Unavailable", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &IndexerError{Kind: "AuthRejected", Retryable: false, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &IndexerError{Kind: "RateLimited", Retryable: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return nil, &IndexerError{Kind: "Unavailable", Retryable: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &IndexerError{Kind: "BadRequest", Retryable: false, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var parsed Response
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &IndexerError{Kind: "Parse", Retryable: false, Err: err}
	}

	return parsed.Channel.Items, nil
}

// TestConnection calls t=caps; success is HTTP 200 with a parseable caps body.
// Grounded on original_source/services/indexer_client.py's test_indexer_connection.
func (c *Client) TestConnection(ctx context.Context) (bool, string) {
	apiURL, err := c.apiURL()
	if err != nil {
		return false, err.Error()
	}
	params := url.Values{"t": {"caps"}}
	if c.indexer.APIKey != "" {
		params.Set("apikey", c.indexer.APIKey)
	}
	apiURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL.String(), nil)
	if err != nil {
		return false, err.Error()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Sprintf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("HTTP %d from indexer", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	text := strings.ToLower(string(body))

	if strings.Contains(contentType, "text/html") {
		return false, "HTML response; check API URL (no caps)"
	}
	if strings.Contains(text, "<error") || strings.Contains(text, "invalid api") {
		return false, "indexer reported API key error"
	}
	if strings.Contains(text, "<caps") || strings.Contains(text, "<newznab") {
		return true, "caps retrieved"
	}
	return false, "unexpected response from indexer (no caps)"
}

// DownloadNZB fetches the NZB file content from an enclosure URL, capped at
// 15MB (SPEC_FULL.md/teacher idiom: io.LimitReader).
func (c *Client) DownloadNZB(ctx context.Context, enclosureURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, enclosureURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build nzb download request: %w", err)
	}
	req.Header.Set("User-Agent", "racecarrd/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download nzb: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nzb download failed with status %d", resp.StatusCode)
	}

	const maxNZBSize = 15 * 1024 * 1024
	return io.ReadAll(io.LimitReader(resp.Body, maxNZBSize))
}

func asIndexerError(err error, target **IndexerError) bool {
	ierr, ok := err.(*IndexerError)
	if ok {
		*target = ierr
	}
	return ok
}
