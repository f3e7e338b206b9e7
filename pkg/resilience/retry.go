package resilience

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/courtmate/tennis-platform/pkg/logger"
	"go.uber.org/zap"
)

// RetryConfig bounds how often and how patiently an operation is retried.
type RetryConfig struct {
	// MaxAttempts includes the initial attempt.
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// EnableJitter draws each wait uniformly from [0, backoff).
	EnableJitter bool
	// RetryableChecker decides whether an error is worth another attempt.
	// When nil every error except cancellation and an open breaker is retried.
	RetryableChecker func(error) bool
}

// DefaultRetryConfig is the policy for outbound provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2,
		EnableJitter:      true,
	}
}

// RetryWithName runs operation until it succeeds, fails permanently or runs
// out of attempts. Attempts and waits are recorded under name.
func RetryWithName(ctx context.Context, config RetryConfig, operation Operation, name string) (interface{}, error) {
	attempts := max(config.MaxAttempts, 1)
	start := time.Now()
	done := func(attempt int, ok bool) {
		retryMetrics.finished(name, time.Since(start).Seconds(), attempt, ok)
	}

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			done(attempt, false)
			return nil, ctxErr
		}

		var result interface{}
		result, err = operation(ctx)
		retryMetrics.attempt(name, err == nil)
		if err == nil {
			done(attempt, true)
			if attempt > 1 {
				logger.InfoContext(ctx, "operation recovered after retry",
					zap.String("operation", name), zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if !shouldRetry(err, config) {
			done(attempt, false)
			return nil, err
		}
		if attempt >= attempts {
			done(attempt, false)
			logger.WarnContext(ctx, "operation failed after retries",
				zap.String("operation", name), zap.Int("attempts", attempt), zap.Error(err))
			return nil, err
		}

		wait := calculateBackoff(attempt, config)
		retryMetrics.waited(name, wait.Seconds())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			done(attempt, false)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// RetryWithBreaker retries operation through breaker. An open breaker ends
// the retries at once.
func RetryWithBreaker(ctx context.Context, config RetryConfig, breaker *CircuitBreaker, operation Operation) (interface{}, error) {
	return RetryWithName(ctx, config, func(ctx context.Context) (interface{}, error) {
		return breaker.Execute(ctx, operation)
	}, breaker.Name())
}

// calculateBackoff grows InitialBackoff geometrically per attempt, capped at
// MaxBackoff.
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	wait := config.InitialBackoff
	for i := 1; i < attempt && wait < config.MaxBackoff; i++ {
		wait = time.Duration(float64(wait) * config.BackoffMultiplier)
	}
	wait = min(wait, config.MaxBackoff)

	if config.EnableJitter && wait > 0 {
		return time.Duration(rand.Int63n(int64(wait)))
	}
	return wait
}

func shouldRetry(err error, config RetryConfig) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrCircuitOpen):
		return false
	case config.RetryableChecker != nil:
		return config.RetryableChecker(err)
	default:
		return true
	}
}

// IsRetryableHTTPStatus reports whether a provider status is transient.
func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
