package resilience

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

const metricsNamespace = "courtmate"

type breakerCollectors struct {
	stateGauge  *prometheus.GaugeVec
	requests    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

type retryCollectors struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tries    *prometheus.HistogramVec
	backoff  *prometheus.HistogramVec
}

var (
	breakerMetrics = breakerCollectors{
		stateGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "upstream",
			Name:      "breaker_state",
			Help:      "Breaker state per upstream: 0 closed, 0.5 half-open, 1 open",
		}, []string{"breaker"}),
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "upstream",
			Name:      "breaker_calls_total",
			Help:      "Calls made through a breaker",
		}, []string{"breaker"}),
		failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "upstream",
			Name:      "breaker_failures_total",
			Help:      "Calls through a breaker that the upstream failed",
		}, []string{"breaker"}),
		rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "upstream",
			Name:      "breaker_rejections_total",
			Help:      "Calls refused because the breaker was open",
		}, []string{"breaker"}),
		transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "upstream",
			Name:      "breaker_transitions_total",
			Help:      "Breaker state changes",
		}, []string{"breaker", "from", "to"}),
	}

	retryMetrics = retryCollectors{
		attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Individual attempts by outcome",
		}, []string{"operation", "result"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "retry",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of an operation across all its attempts",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"operation", "result"}),
		tries: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "retry",
			Name:      "attempts_per_operation",
			Help:      "Attempts used before success or giving up",
			Buckets:   []float64{1, 2, 3, 4, 5, 10},
		}, []string{"operation", "result"}),
		backoff: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "retry",
			Name:      "backoff_seconds",
			Help:      "Waits between attempts",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"operation"}),
	}

	anonymousBreakers uint64
)

// breakerName keeps unnamed breakers apart in the metric labels.
func breakerName(name string) string {
	if name != "" {
		return name
	}
	return "breaker-" + strconv.FormatUint(atomic.AddUint64(&anonymousBreakers, 1), 10)
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 0.5
	case gobreaker.StateOpen:
		return 1
	}
	return -1
}

func (m breakerCollectors) state(name string, s gobreaker.State) {
	m.stateGauge.WithLabelValues(name).Set(stateValue(s))
}

func (m breakerCollectors) transition(name string, from, to gobreaker.State) {
	m.transitions.WithLabelValues(name, from.String(), to.String()).Inc()
	m.state(name, to)
}

func (m breakerCollectors) request(name string)  { m.requests.WithLabelValues(name).Inc() }
func (m breakerCollectors) failure(name string)  { m.failures.WithLabelValues(name).Inc() }
func (m breakerCollectors) rejected(name string) { m.rejections.WithLabelValues(name).Inc() }

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m retryCollectors) attempt(operation string, ok bool) {
	m.attempts.WithLabelValues(operation, outcome(ok)).Inc()
}

func (m retryCollectors) finished(operation string, seconds float64, attempts int, ok bool) {
	m.duration.WithLabelValues(operation, outcome(ok)).Observe(seconds)
	m.tries.WithLabelValues(operation, outcome(ok)).Observe(float64(attempts))
}

func (m retryCollectors) waited(operation string, seconds float64) {
	m.backoff.WithLabelValues(operation).Observe(seconds)
}
