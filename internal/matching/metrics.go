package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesEvaluated = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "courtmate",
		Subsystem: "matching",
		Name:      "candidates_evaluated",
		Help:      "Number of candidate players scored per match search",
		Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
	})

	candidatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtmate",
		Subsystem: "matching",
		Name:      "candidates_skipped_total",
		Help:      "Candidates dropped from match results by reason",
	}, []string{"reason"})
)
