// Package metrics is the Prometheus instrumentation layer (C13): one
// Recorder implementing internal/scheduler.Recorder plus an HTTP handler for
// the /metrics endpoint. Grounded on the counter/gauge/histogram vocabulary
// tomtom215-cartographus's internal/metrics/metrics.go uses (promauto
// constructors, *Vec label sets for per-indexer/per-outcome breakdowns),
// adapted from that package's global promauto vars into one struct so a test
// can register against its own registry instead of colliding with other
// tests' global state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements internal/scheduler.Recorder against a dedicated
// prometheus.Registry.
type Recorder struct {
	registry *prometheus.Registry

	ticksStarted       prometheus.Counter
	entriesPicked      prometheus.Histogram
	searchesDispatched *prometheus.CounterVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	autoGrabsSent      prometheus.Counter
	notificationsOK    prometheus.Counter
	notificationsFail  prometheus.Counter
}

// New builds a Recorder registered against a fresh registry, so the caller
// decides whether to expose it (ServeHTTP/Handler) or keep it process-
// internal (tests).
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		ticksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racecarr_scheduler_ticks_total",
			Help: "Total number of scheduler tick runs.",
		}),
		entriesPicked: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "racecarr_scheduler_entries_picked",
			Help:    "Number of due entries selected per tick.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		searchesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "racecarr_indexer_searches_total",
			Help: "Total number of searches dispatched per indexer.",
		}, []string{"indexer"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racecarr_round_cache_hits_total",
			Help: "Total number of round search cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racecarr_round_cache_misses_total",
			Help: "Total number of round search cache misses.",
		}),
		autoGrabsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racecarr_auto_grabs_total",
			Help: "Total number of releases auto-sent to a downloader.",
		}),
		notificationsOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racecarr_notifications_sent_total",
			Help: "Total number of notification dispatches that fully succeeded.",
		}),
		notificationsFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racecarr_notifications_failed_total",
			Help: "Total number of notification dispatches with at least one failed target.",
		}),
	}

	reg.MustRegister(
		r.ticksStarted, r.entriesPicked, r.searchesDispatched,
		r.cacheHits, r.cacheMisses, r.autoGrabsSent,
		r.notificationsOK, r.notificationsFail,
	)
	return r
}

// Handler exposes the registry in the standard Prometheus text exposition
// format, for C11's server to mount at /metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) TickStarted() { r.ticksStarted.Inc() }

func (r *Recorder) EntriesPicked(n int) { r.entriesPicked.Observe(float64(n)) }

func (r *Recorder) SearchDispatched(indexerName string) {
	r.searchesDispatched.WithLabelValues(indexerName).Inc()
}

func (r *Recorder) CacheResult(hit bool) {
	if hit {
		r.cacheHits.Inc()
	} else {
		r.cacheMisses.Inc()
	}
}

func (r *Recorder) AutoGrabSent() { r.autoGrabsSent.Inc() }

func (r *Recorder) NotificationResult(ok bool) {
	if ok {
		r.notificationsOK.Inc()
	} else {
		r.notificationsFail.Inc()
	}
}
