package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/courtmate/tennis-platform/pkg/resilience"
	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Critical  bool          `json:"critical"`
	Latency   time.Duration `json:"latency_ms"`
	Message   string        `json:"message,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// BreakerStatus represents the state of a circuit breaker
type BreakerStatus struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Allows bool   `json:"allows_requests"`
}

// DeepHealthStatus is the aggregated view returned by /health/deep.
type DeepHealthStatus struct {
	Status       string                      `json:"status"`
	Version      string                      `json:"version,omitempty"`
	Uptime       time.Duration               `json:"uptime_seconds"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	Breakers     map[string]BreakerStatus    `json:"circuit_breakers,omitempty"`
	CheckedAt    time.Time                   `json:"checked_at"`
}

type dependency struct {
	critical bool
	check    CheckFunc
}

// DeepCheckerConfig holds configuration for the deep checker
type DeepCheckerConfig struct {
	Version  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultDeepCheckerConfig returns sensible defaults
func DefaultDeepCheckerConfig() DeepCheckerConfig {
	return DeepCheckerConfig{
		Version:  "unknown",
		Timeout:  5 * time.Second,
		CacheTTL: 10 * time.Second,
	}
}

// DeepChecker probes every registered dependency and reports breaker state.
// Results are cached for CacheTTL.
type DeepChecker struct {
	cfg       DeepCheckerConfig
	startTime time.Time

	mu          sync.RWMutex
	deps        map[string]dependency
	breakers    map[string]*resilience.CircuitBreaker
	lastResult  *DeepHealthStatus
	lastChecked time.Time
}

// NewDeepChecker creates a new deep health checker
func NewDeepChecker(cfg DeepCheckerConfig) *DeepChecker {
	return &DeepChecker{
		cfg:       cfg,
		startTime: time.Now(),
		deps:      make(map[string]dependency),
		breakers:  make(map[string]*resilience.CircuitBreaker),
	}
}

// SetDatabase registers PostgreSQL as a critical dependency.
func (d *DeepChecker) SetDatabase(db *sql.DB) {
	d.AddDependency("postgres", true, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if db.Stats().OpenConnections == 0 {
			return fmt.Errorf("no open connections in pool")
		}
		return nil
	})
}

// AddDependency registers a named probe. A failing critical dependency makes
// the service unhealthy; any other failure only degrades it.
func (d *DeepChecker) AddDependency(name string, critical bool, check CheckFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deps[name] = dependency{critical: critical, check: check}
	d.lastResult = nil
}

// AddCircuitBreaker adds a circuit breaker to monitor
func (d *DeepChecker) AddCircuitBreaker(name string, breaker *resilience.CircuitBreaker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakers[name] = breaker
	d.lastResult = nil
}

// Check performs the deep health check
func (d *DeepChecker) Check(ctx context.Context) *DeepHealthStatus {
	d.mu.RLock()
	if d.lastResult != nil && time.Since(d.lastChecked) < d.cfg.CacheTTL {
		result := d.lastResult
		d.mu.RUnlock()
		return result
	}
	deps := make(map[string]dependency, len(d.deps))
	for name, dep := range d.deps {
		deps[name] = dep
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(d.breakers))
	for name, b := range d.breakers {
		breakers[name] = b
	}
	d.mu.RUnlock()

	status := &DeepHealthStatus{
		Status:       StatusHealthy,
		Version:      d.cfg.Version,
		Uptime:       time.Since(d.startTime),
		Dependencies: make(map[string]DependencyStatus, len(deps)),
		Breakers:     make(map[string]BreakerStatus, len(breakers)),
		CheckedAt:    time.Now(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, dep := range deps {
		wg.Add(1)
		go func(name string, dep dependency) {
			defer wg.Done()
			result := d.probe(ctx, name, dep)
			mu.Lock()
			status.Dependencies[name] = result
			mu.Unlock()
		}(name, dep)
	}
	wg.Wait()

	for _, dep := range status.Dependencies {
		if dep.Status == StatusHealthy {
			continue
		}
		if dep.Critical {
			status.Status = StatusUnhealthy
		} else if status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	for name, breaker := range breakers {
		allows := breaker.Allow()
		if !allows && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
		status.Breakers[name] = BreakerStatus{Name: name, State: breaker.State(), Allows: allows}
	}

	d.mu.Lock()
	d.lastResult = status
	d.lastChecked = time.Now()
	d.mu.Unlock()

	return status
}

func (d *DeepChecker) probe(ctx context.Context, name string, dep dependency) DependencyStatus {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	result := DependencyStatus{Name: name, Critical: dep.critical, Status: StatusHealthy, CheckedAt: start}
	if err := dep.check(checkCtx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	result.Latency = time.Since(start)
	return result
}

// GinHandler serves the deep check. Degraded still answers 200.
func (d *DeepChecker) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := d.Check(c.Request.Context())
		code := http.StatusOK
		if status.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}
