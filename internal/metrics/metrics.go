// Package metrics provides Prometheus metrics for the web client.
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
	// DAV request metrics
	davRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webclient_dav_requests_total",
			Help: "Total number of WebDAV requests",
		},
		[]string{"method", "status"},
	)

	davRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webclient_dav_request_duration_seconds",
			Help:    "WebDAV request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	davRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webclient_dav_retries_total",
			Help: "Total number of retried WebDAV requests",
		},
		[]string{"method"},
	)

	// Bulk operation metrics
	bulkItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webclient_bulk_items_total",
			Help: "Total resources processed by bulk workers",
		},
		[]string{"operation", "result"},
	)

	workersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webclient_workers_active",
			Help: "Number of running workers",
		},
	)

	loadingPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webclient_loading_pending",
			Help: "Number of unresolved loading units",
		},
	)

	// File URL metrics
	fileURLsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webclient_file_urls_total",
			Help: "Total file URLs handed out by kind",
		},
		[]string{"kind"},
	)

	blobURLsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webclient_blob_urls_active",
			Help: "Number of unrevoked blob URLs",
		},
	)

	// Auth metrics
	tokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webclient_token_refreshes_total",
			Help: "Total access token refresh attempts",
		},
		[]string{"result"},
	)
)

// File URL kinds.
const (
	URLSigned = "signed"
	URLBlob   = "blob"
	URLDirect = "direct"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDAVRequest records a completed WebDAV request. A zero status means
// the request never got a response.
func RecordDAVRequest(method string, status int, duration time.Duration) {
	davRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	davRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordDAVRetry records a retried WebDAV request.
func RecordDAVRetry(method string) {
	davRetriesTotal.WithLabelValues(method).Inc()
}

// RecordBulkItem records the outcome of one resource in a bulk operation.
func RecordBulkItem(operation string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	bulkItemsTotal.WithLabelValues(operation, result).Inc()
}

// WorkerStarted increments the running worker gauge.
func WorkerStarted() {
	workersActive.Inc()
}

// WorkerStopped decrements the running worker gauge.
func WorkerStopped() {
	workersActive.Dec()
}

// SetLoadingPending sets the number of unresolved loading units.
func SetLoadingPending(count int) {
	loadingPending.Set(float64(count))
}

// RecordFileURL records a handed out file URL.
func RecordFileURL(kind string) {
	fileURLsTotal.WithLabelValues(kind).Inc()
}

// SetBlobURLsActive sets the number of unrevoked blob URLs.
func SetBlobURLsActive(count int) {
	blobURLsActive.Set(float64(count))
}

// RecordTokenRefresh records an access token refresh attempt.
func RecordTokenRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	tokenRefreshesTotal.WithLabelValues(result).Inc()
}
