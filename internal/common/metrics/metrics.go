package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// SubmissionOutcomes counts submissions by final outcome: committed or the failure kind.
	SubmissionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_outcomes_total",
			Help: "Application submissions by outcome",
		},
		[]string{"outcome"},
	)

	SubmissionRollbackDeletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_rollback_deletes_total",
			Help: "Compensating deletes issued during submission rollback",
		},
		[]string{"sobject", "result"},
	)

	RecordStoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_store_requests_total",
			Help: "HTTP requests sent to the record store",
		},
		[]string{"method", "status"},
	)

	RecordStoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "record_store_request_duration_seconds",
			Help:    "Record store request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// TrackJob marks a job active and returns a func that records its completion.
// Pass an empty errorCode for success.
func TrackJob(taskType string) func(errorCode string) {
	start := time.Now()
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	return func(errorCode string) {
		WorkerJobsActive.WithLabelValues(taskType).Dec()
		WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		if errorCode == "" {
			WorkerJobsCompleted.WithLabelValues(taskType).Inc()
			return
		}
		WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
	}
}

// ObserveRecordStoreRequest records one round trip. status is 0 for transport errors.
func ObserveRecordStoreRequest(method string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	RecordStoreRequests.WithLabelValues(method, label).Inc()
	RecordStoreRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
