// Package database opens the Postgres connection pool backing the job
// store, retrying transient startup failures so the worker and watchdog
// processes can come up before Postgres has finished accepting
// connections (e.g. during a container restart).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" //nolint:blankimports // postgres driver

	"github.com/jonesrussell/healtharchive/internal/config"
	"github.com/jonesrussell/healtharchive/internal/logger"
	"github.com/jonesrussell/healtharchive/internal/retry"
)

const (
	maxRetryAttempts  = 10
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 30 * time.Second
	retryMultiplier   = 2.0
	connectionTimeout = 2 * time.Minute
	pingTimeout       = 5 * time.Second
)

// DB wraps a *sql.DB with a logger for connection lifecycle events.
type DB struct {
	db     *sql.DB
	logger logger.Logger
}

func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"starting up",
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"timeout",
		"deadline exceeded",
		"too many connections",
		"server closed the connection unexpectedly",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// New opens a connection pool to cfg.Database and blocks (with
// exponential backoff) until a ping succeeds or connectionTimeout
// elapses.
func New(cfg *config.DatabaseConfig, log logger.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	retryConfig := retry.Config{
		MaxAttempts:  maxRetryAttempts,
		InitialDelay: initialRetryDelay,
		MaxDelay:     maxRetryDelay,
		Multiplier:   retryMultiplier,
		IsRetryable:  isRetryableDBError,
	}

	attempt := 0
	connectErr := retry.Retry(ctx, retryConfig, func() error {
		attempt++
		pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
		defer pingCancel()

		if pingErr := db.PingContext(pingCtx); pingErr != nil {
			if isRetryableDBError(pingErr) {
				log.Warn("database not ready, retrying",
					logger.Int("attempt", attempt),
					logger.Int("max_attempts", maxRetryAttempts),
					logger.Error(pingErr),
				)
			}
			return pingErr
		}
		return nil
	})

	if connectErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after connection failure", logger.Error(closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", connectErr)
	}

	log.Info("database connection established",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
	)

	return &DB{db: db, logger: log}, nil
}

// Close closes the underlying pool.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for queries.
func (d *DB) DB() *sql.DB {
	return d.db
}
