// Package dbretry re-runs database work that failed for transient reasons.
package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robalyx/shopledger/internal/setup/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrCommitUnknown is returned by Transaction when the connection failed
// during COMMIT. The transaction may have been applied and is not re-run.
var ErrCommitUnknown = errors.New("transaction outcome unknown")

// Policy controls the exponential backoff between attempts.
type Policy struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxElapsedTime:  30 * time.Second,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxRetries:      5,
	}
}

// PolicyFromConfig builds a policy from the retry section of the config.
// Zero values fall back to DefaultPolicy.
func PolicyFromConfig(cfg *config.Retry) Policy {
	policy := DefaultPolicy()
	if cfg == nil {
		return policy
	}

	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	if cfg.Delay > 0 {
		policy.InitialInterval = time.Duration(cfg.Delay) * time.Millisecond
	}
	if cfg.MaxDelay > 0 {
		policy.MaxInterval = time.Duration(cfg.MaxDelay) * time.Millisecond
	}
	if cfg.MaxElapsed > 0 {
		policy.MaxElapsedTime = time.Duration(cfg.MaxElapsed) * time.Second
	}

	return policy
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(p.MaxElapsedTime),
		backoff.WithInitialInterval(p.InitialInterval),
		backoff.WithMaxInterval(p.MaxInterval),
	), p.MaxRetries)

	return backoff.WithContext(b, ctx)
}

// IsRetryableError checks if the given error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check for specific PostgreSQL error codes
	if code := sqlState(err); code != "" {
		switch code {
		case "08000", // connection_exception
			"08003", // connection_does_not_exist
			"08006", // connection_failure
			"08001", // sqlclient_unable_to_establish_sqlconnection
			"08004", // sqlserver_rejected_establishment_of_sqlconnection
			"08007", // transaction_resolution_unknown
			"40001", // serialization_failure
			"40P01", // deadlock_detected
			"53000", // insufficient_resources
			"53300", // too_many_connections
			"57P01", // admin_shutdown
			"57P02", // crash_shutdown
			"57P03", // cannot_connect_now
			"55P03": // lock_not_available
			return true
		}
		return false
	}

	// The caller gave up, retrying would not help
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Check for common network error strings
	errMsg := err.Error()
	return strings.Contains(errMsg, "connection reset by peer") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no connection") ||
		strings.Contains(errMsg, "i/o timeout")
}

// Operation wraps a database operation with retry logic.
func Operation[T any](ctx context.Context, policy Policy, operation func(context.Context) (T, error)) (T, error) {
	return retry(ctx, policy, IsRetryableError, operation)
}

// NoResult wraps a database operation that doesn't return a result.
func NoResult(ctx context.Context, policy Policy, operation func(context.Context) error) error {
	_, err := Operation(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// Transaction runs fn in a transaction. Failures before the commit are
// retried like any other operation. A failed commit is only retried when
// Postgres reports a serialization failure or deadlock, since anything else
// may have been applied.
func Transaction(ctx context.Context, db bun.IDB, policy Policy, fn func(context.Context, bun.Tx) error) error {
	_, err := retry(ctx, policy, isRetryableTxError, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, runInTx(ctx, db, fn)
	})
	return err
}

// commitError marks an error returned by COMMIT.
type commitError struct {
	err error
}

func (e *commitError) Error() string {
	return "failed to commit transaction: " + e.err.Error()
}

func (e *commitError) Unwrap() error {
	return e.err
}

// runInTx runs a single attempt and tags commit failures.
func runInTx(ctx context.Context, db bun.IDB, fn func(context.Context, bun.Tx) error) error {
	var committing bool

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		committing = true
		return nil
	})
	if err == nil || !committing {
		return err
	}

	// Without an answer from the server the commit may or may not have landed
	code := sqlState(err)
	if code == "" || code == "08007" {
		return fmt.Errorf("%w: %w", ErrCommitUnknown, &commitError{err: err})
	}

	return &commitError{err: err}
}

func isRetryableTxError(err error) bool {
	if errors.Is(err, ErrCommitUnknown) {
		return false
	}

	var ce *commitError
	if errors.As(err, &ce) {
		return isConflict(ce.err)
	}

	return IsRetryableError(err)
}

// isConflict reports a serialization failure or deadlock, which Postgres
// always resolves by rolling the transaction back.
func isConflict(err error) bool {
	switch sqlState(err) {
	case "40001", "40P01":
		return true
	}
	return false
}

// sqlState returns the SQLSTATE of a Postgres error, or "" for other errors.
func sqlState(err error) string {
	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		return pgerr.Field('C')
	}
	return ""
}

func retry[T any](
	ctx context.Context, policy Policy, retryable func(error) bool, operation func(context.Context) (T, error),
) (T, error) {
	var result T
	var lastErr, permanentErr error

	err := backoff.Retry(func() error {
		var err error
		result, err = operation(ctx)
		if err != nil {
			if !retryable(err) {
				permanentErr = err
				return backoff.Permanent(err)
			}
			lastErr = err
			return err
		}
		return nil
	}, policy.backOff(ctx))
	if err != nil {
		if permanentErr != nil {
			return result, permanentErr
		}
		if lastErr != nil {
			// Return the last actual database error instead of retry error
			return result, fmt.Errorf("database operation failed after retries: %w", lastErr)
		}
		return result, fmt.Errorf("database operation failed: %w", err)
	}

	return result, nil
}
