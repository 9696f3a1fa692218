package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a new PostgreSQL connection pool.
func New(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return pool, nil
}

// RetryPolicy bounds the startup connection loop.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
}

// Connect opens the pool, retrying while the database is still starting up.
// Retries only happen here, never per request.
func Connect(ctx context.Context, dsn string, policy RetryPolicy, logger *slog.Logger) (*pgxpool.Pool, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		pool, err := New(ctx, dsn)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		if logger != nil {
			logger.Warn("database not ready, retrying", slog.Int("attempt", i), slog.Int("max", attempts), slog.Any("error", err))
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.Interval):
		}
	}
	return nil, fmt.Errorf("platform/db: database not available after %d attempts: %w", attempts, lastErr)
}
