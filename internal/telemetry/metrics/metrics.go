// Package metrics exposes the Prometheus collectors the scheduler
// records job lifecycle activity against. Adapted from
// gophpeek-phpeek-pm's promauto package-var pattern, renamed to the
// scheduler's own event vocabulary (spec.md §4.2 event codes).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsScheduled counts jobs currently held by a job store, by
	// store alias.
	JobsScheduled = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobscheduler_jobs_scheduled",
			Help: "Number of jobs currently held by a job store",
		},
		[]string{"store"},
	)

	JobsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobscheduler_jobs_added_total",
			Help: "Total number of jobs added to a store",
		},
		[]string{"store"},
	)

	JobsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobscheduler_jobs_removed_total",
			Help: "Total number of jobs removed from a store",
		},
		[]string{"store"},
	)

	JobExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobscheduler_job_executions_total",
			Help: "Total number of completed job run times, by outcome",
		},
		[]string{"job", "status"}, // status: success, error
	)

	JobExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobscheduler_job_execution_duration_seconds",
			Help:    "Job run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 60.0},
		},
		[]string{"job"},
	)

	JobsMissed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobscheduler_jobs_missed_total",
			Help: "Total number of run times dropped as misfires",
		},
		[]string{"job"},
	)

	JobInstancesInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobscheduler_job_instances_in_flight",
			Help: "Number of in-flight run batches for a job",
		},
		[]string{"job"},
	)

	SchedulerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobscheduler_running",
			Help: "Whether the scheduler's firing loop is currently active (1) or not (0)",
		},
	)

	LeaderStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobscheduler_leader",
			Help: "Whether this replica currently holds the firing-loop leader lock",
		},
	)
)
