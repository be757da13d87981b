// Package metrics provides Prometheus metrics for the tabledav server.
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
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabledav_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabledav_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// WebDAV operation metrics
	davOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabledav_dav_operations_total",
			Help: "Total number of WebDAV operations",
		},
		[]string{"method", "status"},
	)

	// Content transfer metrics
	contentBytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabledav_content_bytes_read_total",
			Help: "Total content bytes served to clients",
		},
	)

	contentBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabledav_content_bytes_written_total",
			Help: "Total content bytes written by clients",
		},
	)

	streamedReadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabledav_streamed_reads_total",
			Help: "Number of GET responses served via the chunked read stream",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabledav_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabledav_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	filesystemRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabledav_filesystem_rows",
			Help: "Number of rows in the filesystem table",
		},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabledav_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabledav_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabledav_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request with its outcome.
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordDAVOperation records a WebDAV method dispatch with its status.
func RecordDAVOperation(method string, status int) {
	davOperationsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordContentRead adds served content bytes.
func RecordContentRead(n int64) {
	contentBytesRead.Add(float64(n))
}

// RecordContentWrite adds written content bytes.
func RecordContentWrite(n int64) {
	contentBytesWritten.Add(float64(n))
}

// RecordStreamedRead counts a GET served via the chunked read stream.
func RecordStreamedRead() {
	streamedReadsTotal.Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the open database connection gauge.
func SetDBConnectionsOpen(n int) {
	dbConnectionsOpen.Set(float64(n))
}

// SetFilesystemRows sets the filesystem table row count gauge.
func SetFilesystemRows(n int64) {
	filesystemRows.Set(float64(n))
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// SetSSEConnectionsActive sets the active SSE connection gauge.
func SetSSEConnectionsActive(n int64) {
	sseConnectionsActive.Set(float64(n))
}

// RecordSSEEvent counts a published SSE event by type.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}
