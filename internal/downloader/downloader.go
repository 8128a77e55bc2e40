// Package downloader is the downloader adapter set (C7): a common
// Send/Status/Test interface over SABnzbd's GET-based API and NZBGet's
// JSON-RPC API, plus idempotent dispatch so a retried send within the
// dedup window never double-queues the same release. Grounded on
// original_source/services/downloader_client.py for the exact wire shapes
// and on the teacher's internal/services/torbox/{client,download}.go for
// the Go client construction and error-wrapping idiom.
package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/models"
)

// Error subclasses the downloader failure kinds named in SPEC_FULL.md §7.
type Error struct {
	Kind      string // AuthRejected | Unavailable | BadCategory | Rejected | Unknown
	Retryable bool
	Err       error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func asDownloaderError(err error, target **Error) bool {
	derr, ok := err.(*Error)
	if ok {
		*target = derr
	}
	return ok
}

// IsRetryable reports whether a downloader Send error is worth retrying
// later, used by internal/scheduler to decide between the short retry
// cooldown and a terminal Failed transition.
func IsRetryable(err error) bool {
	var derr *Error
	return asDownloaderError(err, &derr) && derr.Retryable
}

// JobStatus is the coarse acquisition state the poller maps every
// downloader-specific history status onto (SPEC_FULL.md §4.6 uniform
// contract).
type JobStatus string

const (
	JobQueued      JobStatus = "Queued"
	JobDownloading JobStatus = "Downloading"
	JobCompleted   JobStatus = "Completed"
	JobFailed      JobStatus = "Failed"
	JobUnknown     JobStatus = "Unknown"
)

// Adapter is the behavior every downloader kind implements.
type Adapter interface {
	// Send submits one NZB for download, returning the downloader's own job
	// id on success.
	Send(ctx context.Context, nzbURL, title, category string, priority int) (jobID string, err error)
	// Status looks up the most recent history entry whose name contains tag
	// (the dispatch tag embedded in the sent title) and reports its coarse
	// state. Unknown means no matching history entry was found yet.
	Status(ctx context.Context, tag string) (JobStatus, error)
	Test(ctx context.Context) (bool, string)
}

// dispatchRecord is one remembered send, keyed by content hash, used to
// collapse retried sends within the dedup window (SPEC_FULL.md §5
// idempotency: a repeat Send for the same (downloader, nzb_url) within 5
// minutes returns the prior job id instead of re-POSTing).
type dispatchRecord struct {
	jobID  string
	sentAt time.Time
}

// Dispatcher wraps one Downloader row with its adapter and an in-memory
// content-hash dedup table. One Dispatcher per configured downloader.
type Dispatcher struct {
	downloader *models.Downloader
	adapter    Adapter
	logger     *logrus.Logger

	mu       sync.Mutex
	recent   map[string]dispatchRecord
	dedupTTL time.Duration
}

// NewDispatcher builds a dispatcher for one downloader row, selecting the
// adapter by models.DownloaderKind.
func NewDispatcher(d *models.Downloader, logger *logrus.Logger) (*Dispatcher, error) {
	var adapter Adapter
	switch d.Kind {
	case models.DownloaderSAB:
		adapter = newSABAdapter(d)
	case models.DownloaderNZBG:
		adapter = newNZBGetAdapter(d)
	default:
		return nil, fmt.Errorf("unsupported downloader kind: %s", d.Kind)
	}

	return &Dispatcher{
		downloader: d,
		adapter:    adapter,
		logger:     logger,
		recent:     make(map[string]dispatchRecord),
		dedupTTL:   5 * time.Minute,
	}, nil
}

// Send submits an NZB, deduplicating by content hash within the dedup
// window. contentHash is computed by the caller (internal/search.ContentHash
// over the downloader id and nzb url) so this package stays free of a direct
// dependency on the search package.
func (d *Dispatcher) Send(ctx context.Context, contentHash, nzbURL, title, category string, priority int) (string, error) {
	d.mu.Lock()
	if rec, ok := d.recent[contentHash]; ok && time.Since(rec.sentAt) < d.dedupTTL {
		d.mu.Unlock()
		d.logger.WithFields(logrus.Fields{
			"downloader": d.downloader.Name,
			"job_id":     rec.jobID,
		}).Debug("duplicate send suppressed within dedup window")
		return rec.jobID, nil
	}
	d.mu.Unlock()

	jobID, err := d.adapter.Send(ctx, nzbURL, title, category, priority)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.recent[contentHash] = dispatchRecord{jobID: jobID, sentAt: time.Now()}
	d.sweepLocked()
	d.mu.Unlock()

	return jobID, nil
}

// Test verifies connectivity/auth against the configured downloader.
func (d *Dispatcher) Test(ctx context.Context) (bool, string) {
	return d.adapter.Test(ctx)
}

// Status polls the downloader's history for the given dispatch tag.
func (d *Dispatcher) Status(ctx context.Context, tag string) (JobStatus, error) {
	return d.adapter.Status(ctx, tag)
}

// sweepLocked drops dedup entries past the window; caller holds d.mu.
func (d *Dispatcher) sweepLocked() {
	for key, rec := range d.recent {
		if time.Since(rec.sentAt) >= d.dedupTTL {
			delete(d.recent, key)
		}
	}
}
