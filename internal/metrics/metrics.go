package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildcore_messages_processed_total",
		Help: "Total number of inbound chat events processed by the gateway",
	})

	SpamTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildcore_spam_triggers_total",
		Help: "Total number of messages suppressed by the rate tracker",
	})

	EngageTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildcore_engage_triggers_total",
		Help: "Total number of conversations the activity detector engaged",
	})

	JobsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildcore_jobs_dispatched_total",
		Help: "Total number of jobs pushed to the queue",
	})

	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildcore_jobs_completed_total",
		Help: "Total number of jobs whose handler succeeded",
	})

	JobsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildcore_jobs_failed_total",
		Help: "Total number of jobs whose handler failed or was unknown",
	})

	JobsTimedOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildcore_jobs_timed_out_total",
		Help: "Total number of result waits that hit their deadline",
	})

	JobProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guildcore_job_processing_duration_seconds",
		Help:    "Time taken by handlers to process jobs in seconds",
		Buckets: prometheus.DefBuckets,
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guildcore_active_workers",
		Help: "Current number of active worker loops",
	})

	PendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guildcore_pending_jobs",
		Help: "Current depth of the pending job queue",
	})
)
