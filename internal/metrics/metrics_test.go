package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apod_syncer/internal/domain"
)

func TestProvider_RecordsSyncs(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, ok := New(true, reg).(*Provider)
	require.True(t, ok)

	p.IncSync(domain.SyncStatusSuccess, "")
	p.IncSync(domain.SyncStatusError, domain.ErrorKindServer)
	p.IncSync(domain.SyncStatusError, domain.ErrorKindServer)
	p.IncFallback()
	p.AddEntriesStored(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.syncsTotal.WithLabelValues("success", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.syncsTotal.WithLabelValues("error", "server_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.fallbacksTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.entriesStored))
}

func TestProvider_RequestStatusBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(true, reg).(*Provider)

	p.ObserveRequest("/api/v1/months/{month}", http.StatusOK, time.Millisecond)
	p.ObserveRequest("/api/v1/months/{month}", http.StatusNotFound, time.Millisecond)
	p.ObserveRequest("/api/v1/months/{month}", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.requestsTotal.WithLabelValues("/api/v1/months/{month}", "2xx")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.requestsTotal.WithLabelValues("/api/v1/months/{month}", "4xx")))
}

func TestNew_DisabledIsNoop(t *testing.T) {
	p := New(false, prometheus.NewRegistry())
	_, isProvider := p.(*Provider)
	assert.False(t, isProvider)

	assert.NotPanics(t, func() {
		p.IncSync(domain.SyncStatusSuccess, "")
		p.IncCacheHit()
		p.ObserveRequest("/", 200, time.Second)
	})
}
