package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Checker is a readiness check that returns an error if unhealthy.
type Checker func() error

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// DatabaseChecker pings PostgreSQL through the database/sql view of the pool.
func DatabaseChecker(db *sql.DB, timeout time.Duration) Checker {
	return bounded(timeout, func(ctx context.Context) error {
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		return nil
	})
}

// Probe turns a context-aware dependency probe into a readiness check.
func Probe(name string, fn CheckFunc, timeout time.Duration) Checker {
	return bounded(timeout, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("%s check failed: %w", name, err)
		}
		return nil
	})
}

func bounded(timeout time.Duration, fn CheckFunc) Checker {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	}
}
