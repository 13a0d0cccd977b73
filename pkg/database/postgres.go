// Package database opens the service's PostgreSQL pool. Pool sizing is
// env-tunable; Herald is a single low-traffic writer, so the defaults
// are deliberately small.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"herald/pkg/config"
	"herald/pkg/logging"
)

type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

func poolFromEnv() poolSettings {
	return poolSettings{
		maxOpen:     config.GetEnvInt("DB_MAX_OPEN_CONNS", 10),
		maxIdle:     config.GetEnvInt("DB_MAX_IDLE_CONNS", 2),
		maxLifetime: config.GetEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Connect opens and pings a PostgreSQL pool for the given URL.
func Connect(url string, logger logging.Logger) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := poolFromEnv()
	db.SetMaxOpenConns(pool.maxOpen)
	db.SetMaxIdleConns(pool.maxIdle)
	db.SetConnMaxLifetime(pool.maxLifetime)

	logger.WithFields(logging.Fields{
		"max_open_conns":    pool.maxOpen,
		"max_idle_conns":    pool.maxIdle,
		"conn_max_lifetime": pool.maxLifetime,
	}).Info("Database connected")

	return db, nil
}

// MustConnect is like Connect but exits the process on error
func MustConnect(url string, logger logging.Logger) *sql.DB {
	db, err := Connect(url, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	return db
}
