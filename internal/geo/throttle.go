package geo

import (
	"context"
	"time"

	"github.com/courtmate/tennis-platform/pkg/ratelimit"
	"golang.org/x/time/rate"
)

// Throttle blocks until one provider call may be made.
type Throttle interface {
	Wait(ctx context.Context) error
}

// NewLocalThrottle limits calls from this process only.
func NewLocalThrottle(requestsPerSecond float64) Throttle {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}

// DistributedThrottle shares the provider budget across every API instance
// through the Redis token bucket.
type DistributedThrottle struct {
	limiter *ratelimit.Limiter
	rule    ratelimit.Rule
}

// NewDistributedThrottle allows requestsPerSecond calls cluster-wide.
func NewDistributedThrottle(limiter *ratelimit.Limiter, requestsPerSecond float64) *DistributedThrottle {
	limit := int(requestsPerSecond)
	if limit < 1 {
		limit = 1
	}
	return &DistributedThrottle{
		limiter: limiter,
		rule:    ratelimit.Rule{Limit: limit, Burst: 0, Window: time.Second},
	}
}

func (d *DistributedThrottle) Wait(ctx context.Context) error {
	return d.limiter.Wait(ctx, "geocoding", d.rule)
}
