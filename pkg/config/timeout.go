package config

import (
	"fmt"
	"time"
)

// Default timeouts, in seconds.
const (
	DefaultHTTPClientTimeout     = 30
	DefaultDatabaseQueryTimeout  = 10
	DefaultRedisOperationTimeout = 5
	DefaultRequestTimeout        = 30

	maxHTTPClientTimeout     = 300
	maxDatabaseQueryTimeout  = 120
	maxRedisOperationTimeout = 60
	maxRequestTimeout        = 300
)

// TimeoutConfig holds upstream and per-request deadlines, in seconds.
type TimeoutConfig struct {
	HTTPClientTimeout     int
	DatabaseQueryTimeout  int
	RedisOperationTimeout int
	DefaultRequestTimeout int
	// RouteOverrides is keyed "METHOD:/path" using the gin route pattern.
	RouteOverrides map[string]int
}

func (c TimeoutConfig) validate() error {
	limits := []struct {
		env   string
		value int
		max   int
	}{
		{"HTTP_CLIENT_TIMEOUT", c.HTTPClientTimeout, maxHTTPClientTimeout},
		{"DB_QUERY_TIMEOUT", c.DatabaseQueryTimeout, maxDatabaseQueryTimeout},
		{"REDIS_OPERATION_TIMEOUT", c.RedisOperationTimeout, maxRedisOperationTimeout},
		{"DEFAULT_REQUEST_TIMEOUT", c.DefaultRequestTimeout, maxRequestTimeout},
	}
	for _, l := range limits {
		if l.value > l.max {
			return fmt.Errorf("%s=%d exceeds maximum of %d seconds", l.env, l.value, l.max)
		}
	}
	for route, seconds := range c.RouteOverrides {
		if seconds > maxRequestTimeout {
			return fmt.Errorf("route timeout for %s (%d) exceeds maximum of %d seconds", route, seconds, maxRequestTimeout)
		}
	}
	return nil
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

// HTTPClientTimeoutDuration returns the outbound HTTP client timeout.
func (c TimeoutConfig) HTTPClientTimeoutDuration() time.Duration {
	return seconds(c.HTTPClientTimeout, DefaultHTTPClientTimeout)
}

// DatabaseQueryTimeoutDuration returns the per-query deadline.
func (c TimeoutConfig) DatabaseQueryTimeoutDuration() time.Duration {
	return seconds(c.DatabaseQueryTimeout, DefaultDatabaseQueryTimeout)
}

// RedisOperationTimeoutDuration returns the Redis read/write deadline.
func (c TimeoutConfig) RedisOperationTimeoutDuration() time.Duration {
	return seconds(c.RedisOperationTimeout, DefaultRedisOperationTimeout)
}

// DefaultRequestTimeoutDuration returns the inbound request deadline.
func (c TimeoutConfig) DefaultRequestTimeoutDuration() time.Duration {
	return seconds(c.DefaultRequestTimeout, DefaultRequestTimeout)
}

// TimeoutForRoute returns the deadline for a route, honouring overrides.
func (c TimeoutConfig) TimeoutForRoute(method, path string) time.Duration {
	if override, ok := c.RouteOverrides[method+":"+path]; ok && override > 0 {
		return time.Duration(override) * time.Second
	}
	return c.DefaultRequestTimeoutDuration()
}
