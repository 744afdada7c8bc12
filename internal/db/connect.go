package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectTimeout    = 10 * time.Second
	initialRetryDelay = time.Second
	maxRetryDelay     = 10 * time.Second
)

// Connect opens a pool and waits until the database answers a ping,
// retrying with backoff up to attempts times.
func Connect(ctx context.Context, dsn string, attempts uint) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	var pool *pgxpool.Pool
	err = retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout)
			defer cancel()

			p, err := pgxpool.NewWithConfig(attemptCtx, cfg)
			if err != nil {
				return err
			}
			if err := p.Ping(attemptCtx); err != nil {
				p.Close()
				return err
			}
			pool = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(initialRetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("database not ready",
				slog.Uint64("attempt", uint64(n+1)),
				slog.Uint64("max_attempts", uint64(attempts)),
				slog.String("error", err.Error()))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}
