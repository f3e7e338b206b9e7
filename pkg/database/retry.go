package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/courtmate/tennis-platform/pkg/resilience"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxBeginner is satisfied by *pgxpool.Pool and pgx.Tx.
type TxBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// RetryableTransaction runs fn in a transaction, retrying the whole
// transaction on serialization failures, deadlocks and dropped connections.
// Errors returned by fn that are not transient are returned unchanged.
func RetryableTransaction(ctx context.Context, pool TxBeginner, fn func(pgx.Tx) error) error {
	config := resilience.DefaultRetryConfig()
	config.InitialBackoff = 50 * time.Millisecond
	config.MaxBackoff = time.Second
	config.RetryableChecker = isPostgresRetryable

	_, err := resilience.RetryWithName(ctx, config, func(ctx context.Context) (interface{}, error) {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := fn(tx); err != nil {
			return nil, err
		}
		return nil, tx.Commit(ctx)
	}, "database.transaction")

	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isPostgresRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"53300", // too_many_connections
			"57P01", // admin_shutdown
			"57P03": // cannot_connect_now
			return true
		}
		if strings.HasPrefix(pgErr.Code, "08") { // connection_exception
			return true
		}
		return false
	}

	errMsg := strings.ToLower(err.Error())
	for _, msg := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"server closed",
	} {
		if strings.Contains(errMsg, msg) {
			return true
		}
	}
	return false
}
