// Package metrics provides Prometheus metrics for MediaDNA.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	filesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadna_files_processed_total",
			Help: "Files seen by the hash pipeline, by outcome",
		},
		[]string{"result"},
	)

	hasherDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadna_hasher_duration_seconds",
			Help:    "Time spent in a single hasher invocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"hasher"},
	)

	hasherResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadna_hasher_results_total",
			Help: "Hasher invocations by outcome",
		},
		[]string{"hasher", "status"},
	)

	// Store metrics
	storeRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediadna_store_records",
			Help: "Number of file records in the fingerprint store",
		},
	)

	duplicateClusters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediadna_duplicate_clusters",
			Help: "Clusters returned by the last duplicate search",
		},
	)

	findDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediadna_find_duration_seconds",
			Help:    "Duplicate search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Dedup metrics
	dedupMovesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadna_dedup_moves_total",
			Help: "Files moved to the trash directory",
		},
		[]string{"status"},
	)

	// Watch metrics
	watchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadna_watch_events_total",
			Help: "Debounced filesystem events handled by the watcher",
		},
		[]string{"action"},
	)

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediadna_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediadna_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFile records the final outcome of one file in the pipeline.
func RecordFile(result string) {
	filesProcessedTotal.WithLabelValues(result).Inc()
}

// RecordHasher records one hasher invocation.
func RecordHasher(name string, duration time.Duration, err error) {
	hasherDuration.WithLabelValues(name).Observe(duration.Seconds())
	hasherResultsTotal.WithLabelValues(name, status(err == nil)).Inc()
}

// SetStoreRecords sets the current record count.
func SetStoreRecords(count int) {
	storeRecords.Set(float64(count))
}

// RecordFind records a duplicate search.
func RecordFind(clusters int, duration time.Duration) {
	duplicateClusters.Set(float64(clusters))
	findDuration.Observe(duration.Seconds())
}

// RecordMove records a trash move.
func RecordMove(success bool) {
	dedupMovesTotal.WithLabelValues(status(success)).Inc()
}

// RecordWatchEvent counts one handled watcher event. action is index,
// remove or dropped.
func RecordWatchEvent(action string) {
	watchEventsTotal.WithLabelValues(action).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
