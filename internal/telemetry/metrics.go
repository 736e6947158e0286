// Package telemetry records Prometheus metrics for pipeline runs and the
// HTTP surface, and exposes them for scraping.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridge_runs_total",
		Help: "Pipeline runs by final status and destination.",
	}, []string{"status", "destination"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "databridge_run_duration_seconds",
		Help:    "Wall-clock duration of pipeline runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"destination"})

	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "databridge_runs_active",
		Help: "Runs currently holding a concurrency slot.",
	})

	recordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "databridge_records_written_total",
		Help: "Output records written to the record store.",
	})

	outputBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "databridge_output_bytes_total",
		Help: "Bytes of CSV artifacts written to file storage.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridge_http_requests_total",
		Help: "HTTP requests by method, route pattern, and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "databridge_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// RunStarted marks a run as holding a concurrency slot.
func RunStarted() {
	runsActive.Inc()
}

// RunFinished releases the active-run gauge and records the outcome.
// Status is the final run status (completed or failed).
func RunFinished(status, destination string, elapsed time.Duration) {
	runsActive.Dec()
	runsTotal.WithLabelValues(status, destination).Inc()
	runDuration.WithLabelValues(destination).Observe(elapsed.Seconds())
}

// RecordsWritten adds to the output record counter.
func RecordsWritten(n int64) {
	recordsWritten.Add(float64(n))
}

// OutputBytes adds to the artifact byte counter.
func OutputBytes(n int64) {
	outputBytes.Add(float64(n))
}

// ObserveHTTP records one handled HTTP request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
