package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "courtmate",
		Subsystem: "scheduler",
		Name:      "expiry_sweep_duration_seconds",
		Help:      "Duration of shared booking expiry sweeps",
		Buckets:   prometheus.DefBuckets,
	})

	sweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "courtmate",
		Subsystem: "scheduler",
		Name:      "expiry_sweep_errors_total",
		Help:      "Expiry sweeps that failed",
	})

	proposalsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "courtmate",
		Subsystem: "scheduler",
		Name:      "proposals_expired_total",
		Help:      "Proposals moved to expired by the sweep",
	})
)
