// Package database manages the pgx connection pool.
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectAttempts = 3
	connectBackoff  = 2 * time.Second
)

// Config holds database connection configuration
type Config struct {
	URL      string
	MaxConns int32
}

// NewPool creates a pgx connection pool from a database URL. Connecting
// is retried a bounded number of times with fixed backoff; after that,
// startup fails hard — a daemon without a database has nothing to do.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	var pool *pgxpool.Pool
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, lastErr = pgxpool.NewWithConfig(ctx, poolConfig)
		if lastErr == nil {
			lastErr = pool.Ping(ctx)
			if lastErr == nil {
				return pool, nil
			}
			pool.Close()
		}
		if attempt < connectAttempts {
			log.Printf("database: connect attempt %d/%d failed: %v", attempt, connectAttempts, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectBackoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", connectAttempts, lastErr)
}
