// Package metrics declares the prometheus collectors of the job pipeline.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aigc"

// Variables declared for metrics.
var (
	JobsSubmittedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "submission",
		Name:      "jobs_total",
		Help:      "Counter of the number of accepted jobs.",
	}, []string{"service"})

	SubmissionRejectedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "submission",
		Name:      "rejected_total",
		Help:      "Counter of the number of rejected submissions.",
	}, []string{"reason"})

	JobsFinishedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "processor",
		Name:      "jobs_finished_total",
		Help:      "Counter of the number of jobs reaching a terminal status.",
	}, []string{"status", "simulated"})

	JobsSkippedCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "processor",
		Name:      "jobs_skipped_total",
		Help:      "Counter of the number of deliveries ignored because the job was not pending.",
	})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "processor",
		Name:      "job_duration_seconds",
		Help:      "Histogram of the wall time of one job run.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
	})

	ProviderCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "call_duration_seconds",
		Help:      "Histogram of the duration of provider calls.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"kind", "outcome"})

	CreditsDebited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "credits_debited_total",
		Help:      "Counter of credits spent on jobs.",
	})

	CreditsRefunded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "credits_refunded_total",
		Help:      "Counter of credits returned for failed jobs.",
	})

	CreditsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "credits_granted_total",
		Help:      "Counter of credits added by payments and admin grants.",
	}, []string{"type"})
)

// ObserveJobFinished counts a terminal transition.
func ObserveJobFinished(status string, simulated bool) {
	JobsFinishedCount.WithLabelValues(status, strconv.FormatBool(simulated)).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
