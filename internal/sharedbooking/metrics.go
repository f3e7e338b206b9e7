package sharedbooking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtmate",
		Subsystem: "shared_booking",
		Name:      "transitions_total",
		Help:      "Committed shared booking transitions by target status",
	}, []string{"status"})

	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtmate",
		Subsystem: "shared_booking",
		Name:      "conflicts_total",
		Help:      "Rejected transitions caused by concurrent changes or taken slots",
	}, []string{"reason"})
)
