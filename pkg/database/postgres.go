package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresPool creates a PostgreSQL connection pool. queryTimeout becomes
// the server-side statement_timeout of every pooled connection.
func NewPostgresPool(cfg *config.DatabaseConfig, queryTimeout time.Duration) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	poolConfig.ConnConfig.RuntimeParams["application_name"] = "courtmate"
	// Booking dates and TIME columns are interpreted in UTC on the wire;
	// the workflow converts to the club timezone itself.
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	if queryTimeout <= 0 {
		queryTimeout = time.Duration(config.DefaultDatabaseQueryTimeout) * time.Second
	}
	statementTimeout := fmt.Sprintf("SET statement_timeout = %d", queryTimeout.Milliseconds())
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, statementTimeout)
		return err
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// SQLDB exposes the pool through database/sql for components that speak it,
// such as the readiness checker.
func SQLDB(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

// Close closes the database connection pool
func Close(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
