package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecarr/racecarr/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestDispatcher_Send_DeduplicatesWithinWindow(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status": true, "nzo_ids": ["job-1"]}`))
	}))
	defer srv.Close()

	d := &models.Downloader{Kind: models.DownloaderSAB, BaseURL: srv.URL}
	dispatcher, err := NewDispatcher(d, testLogger())
	require.NoError(t, err)

	id1, err := dispatcher.Send(context.Background(), "hash-1", "http://indexer.test/nzb/1.nzb", "x", "", 0)
	require.NoError(t, err)
	id2, err := dispatcher.Send(context.Background(), "hash-1", "http://indexer.test/nzb/1.nzb", "x", "", 0)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, calls)
}

func TestDispatcher_Send_DistinctHashesBothDispatch(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status": true, "nzo_ids": ["job-1"]}`))
	}))
	defer srv.Close()

	d := &models.Downloader{Kind: models.DownloaderSAB, BaseURL: srv.URL}
	dispatcher, err := NewDispatcher(d, testLogger())
	require.NoError(t, err)

	_, err = dispatcher.Send(context.Background(), "hash-1", "http://indexer.test/nzb/1.nzb", "x", "", 0)
	require.NoError(t, err)
	_, err = dispatcher.Send(context.Background(), "hash-2", "http://indexer.test/nzb/2.nzb", "y", "", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}
