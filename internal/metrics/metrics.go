// Package metrics exposes Prometheus collectors for the download service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	jobStageTransitionsTotal   *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audiovault_jobs_total",
				Help: "Total number of extraction jobs finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		jobStageTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audiovault_job_stage_transitions_total",
				Help: "Total number of job stage transitions, labeled by stage.",
			},
			[]string{"stage"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audiovault_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the terminal-status job counter.
func ObserveJob(status string) {
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveStage increments the stage transition counter.
func ObserveStage(stage string) {
	if jobStageTransitionsTotal != nil {
		jobStageTransitionsTotal.WithLabelValues(stage).Inc()
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObserveHTTPRequest records one HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
