package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics_NoPanics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.FileIndexed("added")
		m.FileSkipped("unreadable")
		m.LossyDecode()
		m.SnapshotOp("save", "ok")
		m.ScanObserved(time.Second)
		m.SearchObserved("hit", time.Millisecond)
		m.CacheLookup(true)
		m.SetCorpus(1, 2)
		m.HTTPObserved("GET", "/", 200, time.Millisecond)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.FileIndexed("added")
	m.FileIndexed("added")
	m.FileSkipped("too_large")
	m.LossyDecode()
	m.SnapshotOp("load", "corrupt")
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.SetCorpus(3, 17)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesIndexedTotal.WithLabelValues("added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkippedTotal.WithLabelValues("too_large")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LossyDecodesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotOpsTotal.WithLabelValues("load", "corrupt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Documents))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.Terms))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.LossyDecode()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LossyDecodesTotal))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SearchObserved("hit", 2*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `docdex_search_queries_total{result_type="hit"} 1`)
	assert.Contains(t, string(body), "docdex_search_latency_seconds_count 1")
}

func TestMetrics_HTTPObserved(t *testing.T) {
	m := New()

	m.HTTPObserved("GET", "/api/search", 200, 3*time.Millisecond)
	m.HTTPObserved("GET", "/api/search", 400, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/search", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/search", "400")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}
