package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned instead of calling an upstream the breaker has
// given up on.
var ErrCircuitOpen = errors.New("circuit breaker open")

const defaultFailureThreshold = 5

// Operation is a call guarded by a breaker or a retry loop.
type Operation func(ctx context.Context) (interface{}, error)

// Settings tunes one breaker.
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// SettingsFromConfig applies the per-upstream override for name, if any.
func SettingsFromConfig(name string, cfg config.CircuitBreakerConfig) Settings {
	s := cfg.SettingsFor(name)
	return Settings{
		Name:             name,
		Interval:         time.Duration(s.IntervalSeconds) * time.Second,
		Timeout:          time.Duration(s.TimeoutSeconds) * time.Second,
		FailureThreshold: uint32(s.FailureThreshold),
		SuccessThreshold: uint32(s.SuccessThreshold),
	}
}

// CircuitBreaker guards one upstream (geocoding, email, SMS) and exports
// its state to Prometheus.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker opens after FailureThreshold consecutive failures and
// lets SuccessThreshold probes through once Timeout has passed.
func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	name := breakerName(settings.Name)
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.SuccessThreshold,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller giving up says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: onStateChange,
	})
	breakerMetrics.state(name, gobreaker.StateClosed)

	return &CircuitBreaker{name: name, breaker: cb}
}

func onStateChange(name string, from, to gobreaker.State) {
	logger.Info("circuit breaker state change",
		zap.String("breaker", name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	breakerMetrics.transition(name, from, to)
}

// Name is the breaker's metric label.
func (c *CircuitBreaker) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Execute runs operation unless the breaker is open. A nil breaker always
// runs it.
func (c *CircuitBreaker) Execute(ctx context.Context, operation Operation) (interface{}, error) {
	if operation == nil {
		return nil, errors.New("operation cannot be nil")
	}
	if c == nil || c.breaker == nil {
		return operation(ctx)
	}

	breakerMetrics.request(c.name)
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return operation(ctx)
	})
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		breakerMetrics.rejected(c.name)
		return nil, ErrCircuitOpen
	default:
		breakerMetrics.failure(c.name)
		return nil, err
	}
}

// Allow reports whether a call would currently be let through.
func (c *CircuitBreaker) Allow() bool {
	return c.State() != gobreaker.StateOpen.String()
}

// State is "closed", "half-open" or "open".
func (c *CircuitBreaker) State() string {
	if c == nil || c.breaker == nil {
		return gobreaker.StateClosed.String()
	}
	return c.breaker.State().String()
}
