package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rovlink/rovconsole/internal/config"
)

const telemetrySchema = `
CREATE TABLE IF NOT EXISTS sensor_readings (
	reading_id  UUID PRIMARY KEY,
	session_id  UUID NOT NULL,
	vehicle     TEXT NOT NULL,
	received_at BIGINT NOT NULL,
	depth       DOUBLE PRECISION,
	pressure    DOUBLE PRECISION,
	temperature DOUBLE PRECISION,
	battery     INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sensor_readings_session ON sensor_readings (session_id, received_at);
`

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the telemetry tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, telemetrySchema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}
