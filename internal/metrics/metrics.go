// Package metrics defines the Prometheus collectors exposed on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan job metrics
var (
	// JobsTotal tracks finished scan jobs by type and terminal status
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_jobs_total",
			Help: "Total number of finished scan jobs by type and terminal status",
		},
		[]string{"job_type", "status"},
	)

	// JobDuration tracks scan job duration from start to finalization
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_job_duration_seconds",
			Help:    "Scan job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"job_type"},
	)

	// JobsInProgress tracks currently running scan jobs
	JobsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scan_jobs_in_progress",
			Help: "Number of scan jobs currently running",
		},
		[]string{"job_type"},
	)
)

// Adapter metrics
var (
	// AdapterRunsTotal tracks tool invocations by tool and outcome
	AdapterRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_runs_total",
			Help: "Total number of tool adapter invocations by outcome",
		},
		[]string{"tool", "status"},
	)

	// AdapterRunDuration tracks tool invocation duration
	AdapterRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapter_run_duration_seconds",
			Help:    "Tool adapter invocation duration in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"tool"},
	)

	// AdapterFindings tracks raw finding counts per invocation
	AdapterFindings = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapter_findings",
			Help:    "Raw findings reported per tool invocation",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"tool"},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks HTTP requests by method, path and code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Adapter run statuses.
const (
	StatusOK        = "ok"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
)
