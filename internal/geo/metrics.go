package geo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	geocodeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtmate",
		Subsystem: "geo",
		Name:      "geocode_lookups_total",
		Help:      "Location lookups by outcome (memory_hit, redis_hit, resolved, no_result, error).",
	}, []string{"outcome"})

	meetingPointCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "courtmate",
		Subsystem: "geo",
		Name:      "meeting_point_candidates",
		Help:      "Courts surviving the fairness and detour filters per suggestion.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})
)
