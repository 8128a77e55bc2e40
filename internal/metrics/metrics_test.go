package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorder_ExposesCountersOnHandler(t *testing.T) {
	r := New()
	r.TickStarted()
	r.SearchDispatched("nzb.su")
	r.CacheResult(true)
	r.CacheResult(false)
	r.AutoGrabSent()
	r.NotificationResult(true)
	r.NotificationResult(false)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	require.True(t, strings.Contains(body, "racecarr_scheduler_ticks_total 1"))
	require.True(t, strings.Contains(body, `racecarr_indexer_searches_total{indexer="nzb.su"} 1`))
	require.True(t, strings.Contains(body, "racecarr_round_cache_hits_total 1"))
	require.True(t, strings.Contains(body, "racecarr_round_cache_misses_total 1"))
	require.True(t, strings.Contains(body, "racecarr_auto_grabs_total 1"))
	require.True(t, strings.Contains(body, "racecarr_notifications_sent_total 1"))
	require.True(t, strings.Contains(body, "racecarr_notifications_failed_total 1"))
}
