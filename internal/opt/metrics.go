package opt

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// evaluationsTotal counts objective evaluations by optimizer
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gonlopt_evaluations_total",
		Help: "Total objective evaluations by optimizer",
	}, []string{"optimizer"})

	// runsTotal counts finished runs by optimizer and outcome
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gonlopt_runs_total",
		Help: "Total optimizer runs by optimizer and status",
	}, []string{"optimizer", "status"})

	// runDuration tracks wall time per run
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gonlopt_run_duration_seconds",
		Help:    "Optimizer run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
	}, []string{"optimizer"})

	// activeRuns is the number of runs in progress
	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gonlopt_active_runs",
		Help: "Number of optimizer runs in progress",
	})
)

// Run statuses recorded in metrics for failed runs
const (
	statusCancelled = "Cancelled"
	statusFailed    = "Failed"
)

// runStarted marks a run as active and returns the function that records
// its outcome.
func runStarted(optimizer string) func(status string) {
	start := time.Now()
	activeRuns.Inc()
	return func(status string) {
		activeRuns.Dec()
		runsTotal.WithLabelValues(optimizer, status).Inc()
		runDuration.WithLabelValues(optimizer).Observe(time.Since(start).Seconds())
	}
}
