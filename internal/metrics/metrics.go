package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"apod_syncer/internal/domain"
)

type ProviderInterface interface {
	IncSync(status string, kind domain.ErrorKind)
	IncFallback()
	AddEntriesStored(n int)
	ObserveRemoteDuration(thumbs bool, d time.Duration)
	IncCacheHit()
	IncCacheMiss()
	ObserveRequest(route string, status int, d time.Duration)
}

type Provider struct {
	syncsTotal      *prometheus.CounterVec
	fallbacksTotal  prometheus.Counter
	entriesStored   prometheus.Counter
	remoteDuration  *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. A disabled config yields a no-op provider.
func New(enabled bool, reg prometheus.Registerer) ProviderInterface {
	if !enabled {
		return Noop()
	}

	factory := promauto.With(reg)

	return &Provider{
		syncsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "apod_syncs_total",
			Help: "Total number of completed month synchronizations",
		}, []string{"status", "kind"}),

		fallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "apod_sync_fallbacks_total",
			Help: "Total number of retries without thumbnails after a server error",
		}),

		entriesStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "apod_entries_stored_total",
			Help: "Total number of entries inserted into the local store",
		}),

		remoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apod_remote_request_duration_seconds",
			Help:    "Remote source request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"thumbs"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "apod_cache_hits_total",
			Help: "Total number of month cache hits",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "apod_cache_misses_total",
			Help: "Total number of month cache misses",
		}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "apod_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apod_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Provider) IncSync(status string, kind domain.ErrorKind) {
	m.syncsTotal.WithLabelValues(status, string(kind)).Inc()
}

func (m *Provider) IncFallback() {
	m.fallbacksTotal.Inc()
}

func (m *Provider) AddEntriesStored(n int) {
	m.entriesStored.Add(float64(n))
}

func (m *Provider) ObserveRemoteDuration(thumbs bool, d time.Duration) {
	m.remoteDuration.WithLabelValues(strconv.FormatBool(thumbs)).Observe(d.Seconds())
}

func (m *Provider) IncCacheHit() {
	m.cacheHits.Inc()
}

func (m *Provider) IncCacheMiss() {
	m.cacheMisses.Inc()
}

func (m *Provider) ObserveRequest(route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(route, statusBucket(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Noop returns a provider that records nothing.
func Noop() ProviderInterface {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) IncSync(_ string, _ domain.ErrorKind)            {}
func (noopMetrics) IncFallback()                                    {}
func (noopMetrics) AddEntriesStored(_ int)                          {}
func (noopMetrics) ObserveRemoteDuration(_ bool, _ time.Duration)   {}
func (noopMetrics) IncCacheHit()                                    {}
func (noopMetrics) IncCacheMiss()                                   {}
func (noopMetrics) ObserveRequest(_ string, _ int, _ time.Duration) {}
