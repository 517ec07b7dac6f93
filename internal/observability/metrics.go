// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	PoolsUpserted         prometheus.Counter
	SamplesStored         prometheus.Counter
	HistoryPointsDropped  prometheus.Counter
	CatalogEntriesSkipped prometheus.Counter
	FetchErrors           *prometheus.CounterVec
	IngestionRunsTotal    *prometheus.CounterVec
	IngestionDuration     prometheus.Histogram

	// Recompute metrics
	SummariesComputed  prometheus.Counter
	PoolsSkippedNoData prometheus.Counter
	RecomputeRunsTotal *prometheus.CounterVec
	RecomputeDuration  prometheus.Histogram

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulRecompute prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "yieldscope"
	}

	return &Metrics{
		// Ingestion metrics
		PoolsUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "pools_upserted_total",
			Help:      "Total number of pool rows upserted",
		}),
		SamplesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "samples_stored_total",
			Help:      "Total number of history samples stored to database",
		}),
		HistoryPointsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "history_points_dropped_total",
			Help:      "Total number of history points dropped for unparseable timestamps",
		}),
		CatalogEntriesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "catalog_entries_skipped_total",
			Help:      "Total number of catalog entries skipped for a missing pool id",
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetch_errors_total",
			Help:      "Total number of upstream fetch errors by endpoint",
		}, []string{"endpoint"}),
		IngestionRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs by status",
		}, []string{"status"}),
		IngestionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duration_seconds",
			Help:      "Ingestion run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Recompute metrics
		SummariesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "summaries_computed_total",
			Help:      "Total number of pool summaries computed",
		}),
		PoolsSkippedNoData: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "pools_skipped_no_data_total",
			Help:      "Total number of pools skipped for lack of qualifying history",
		}),
		RecomputeRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "runs_total",
			Help:      "Total number of recompute runs by status",
		}, []string{"status"}),
		RecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "duration_seconds",
			Help:      "Recompute run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// HTTP metrics
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "cache_misses_total",
			Help:      "Total number of response cache misses",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion run",
		}),
		LastSuccessfulRecompute: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_recompute_timestamp",
			Help:      "Unix timestamp of last successful recompute run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPoolsUpserted adds to the pools upserted counter.
func RecordPoolsUpserted(n int) {
	DefaultMetrics.PoolsUpserted.Add(float64(n))
}

// RecordSamplesStored adds to the samples stored counter.
func RecordSamplesStored(n int) {
	DefaultMetrics.SamplesStored.Add(float64(n))
}

// RecordHistoryPointsDropped adds to the dropped history points counter.
func RecordHistoryPointsDropped(n int) {
	DefaultMetrics.HistoryPointsDropped.Add(float64(n))
}

// RecordCatalogEntriesSkipped adds to the skipped catalog entries counter.
func RecordCatalogEntriesSkipped(n int) {
	DefaultMetrics.CatalogEntriesSkipped.Add(float64(n))
}

// RecordFetchError records an upstream fetch error.
func RecordFetchError(endpoint string) {
	DefaultMetrics.FetchErrors.WithLabelValues(endpoint).Inc()
}

// RecordIngestionRun records an ingestion run.
func RecordIngestionRun(status string, durationSeconds float64) {
	DefaultMetrics.IngestionRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.IngestionDuration.Observe(durationSeconds)
}

// RecordSummaryComputed increments the summaries computed counter.
func RecordSummaryComputed() {
	DefaultMetrics.SummariesComputed.Inc()
}

// RecordPoolSkippedNoData increments the skipped pools counter.
func RecordPoolSkippedNoData() {
	DefaultMetrics.PoolsSkippedNoData.Inc()
}

// RecordRecomputeRun records a recompute run.
func RecordRecomputeRun(status string, durationSeconds float64) {
	DefaultMetrics.RecomputeRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RecomputeDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request duration.
func RecordHTTPRequest(route, status string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, status).Observe(seconds)
}

// RecordCacheHit increments the response cache hit counter.
func RecordCacheHit() {
	DefaultMetrics.CacheHits.Inc()
}

// RecordCacheMiss increments the response cache miss counter.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
