package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	ingestionTransitionsTotal *prometheus.CounterVec
	ingestionPollsTotal       *prometheus.CounterVec
	ingestionDurationSeconds  *prometheus.HistogramVec
	uploadRejectedTotal       *prometheus.CounterVec
	ingestionSessionsActive   prometheus.Gauge
	stateStreamClientsActive  prometheus.Gauge

	cacheInvalidationsTotal *prometheus.CounterVec
	cacheRefetchesTotal     *prometheus.CounterVec
	upstreamRequestsTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the dashboard service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		ingestionTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_transitions_total",
			Help: "Ingestion state machine transitions by target state.",
		}, []string{"state"})

		ingestionPollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_polls_total",
			Help: "Status polls issued by ingestion controllers, by observed outcome.",
		}, []string{"result"})

		ingestionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingestion_duration_seconds",
			Help:    "Time from submission to a terminal ingestion state.",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"outcome"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_upload_rejected_total",
			Help: "Uploads rejected by client-side validation.",
		}, []string{"reason"})

		ingestionSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingestion_sessions_active",
			Help: "Dashboard sessions holding an ingestion controller.",
		})

		stateStreamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingestion_state_stream_clients_active",
			Help: "Connected websocket clients streaming ingestion state.",
		})

		cacheInvalidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_invalidations_total",
			Help: "Cache invalidations by scope.",
		}, []string{"scope"})

		cacheRefetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_refetches_total",
			Help: "Cache refetches by scope and result.",
		}, []string{"scope", "result"})

		upstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Requests sent to the syllabus extraction service.",
		}, []string{"operation", "result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			ingestionTransitionsTotal, ingestionPollsTotal, ingestionDurationSeconds,
			uploadRejectedTotal, ingestionSessionsActive, stateStreamClientsActive,
			cacheInvalidationsTotal, cacheRefetchesTotal, upstreamRequestsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// IngestionTransitions counts state machine transitions.
func IngestionTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return ingestionTransitionsTotal
}

// IngestionPolls counts status polls.
func IngestionPolls() *prometheus.CounterVec {
	RegisterMetrics()
	return ingestionPollsTotal
}

// IngestionDuration observes time to a terminal state.
func IngestionDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return ingestionDurationSeconds
}

// UploadRejected counts uploads failing validation.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// IngestionSessionsActive tracks live session controllers.
func IngestionSessionsActive() prometheus.Gauge {
	RegisterMetrics()
	return ingestionSessionsActive
}

// StateStreamClientsActive tracks websocket subscribers.
func StateStreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return stateStreamClientsActive
}

// CacheInvalidations counts store invalidations.
func CacheInvalidations() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheInvalidationsTotal
}

// CacheRefetches counts store refetches.
func CacheRefetches() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheRefetchesTotal
}

// UpstreamRequests counts calls to the extraction service.
func UpstreamRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return upstreamRequestsTotal
}
