// Package store provides PostgreSQL-backed repositories for catchments,
// rainfall events, and simulation runs. All repositories accept a DBTX
// interface that is satisfied by both *pgxpool.Pool (for normal queries) and
// pgx.Tx (for transactional execution).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound reports that a requested record does not exist. Callers
// translate it into a client-facing 404.
var ErrNotFound = errors.New("record not found")

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// schema is applied idempotently at startup. Series payloads live in JSONB:
// they are read and written whole, never queried element-wise.
const schema = `
CREATE TABLE IF NOT EXISTS catchments (
	catchment_id        TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	runoff_coeff        DOUBLE PRECISION NOT NULL,
	area_km2            DOUBLE PRECISION NOT NULL,
	capacity_m3s        DOUBLE PRECISION NOT NULL,
	land_use            TEXT,
	pipe_count          INTEGER NOT NULL DEFAULT 0,
	total_pipe_length_m DOUBLE PRECISION NOT NULL DEFAULT 0,
	geometry            JSONB,
	min_lon             DOUBLE PRECISION,
	min_lat             DOUBLE PRECISION,
	max_lon             DOUBLE PRECISION,
	max_lat             DOUBLE PRECISION,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_catchments_capacity ON catchments (capacity_m3s);
CREATE INDEX IF NOT EXISTS idx_catchments_land_use ON catchments (land_use);

CREATE TABLE IF NOT EXISTS rainfall_events (
	event_id            TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	rain_mmhr           JSONB NOT NULL,
	timestamps_utc      JSONB NOT NULL,
	event_type          TEXT,
	return_period_years INTEGER,
	total_rainfall_mm   DOUBLE PRECISION,
	peak_intensity_mmhr DOUBLE PRECISION,
	duration_hours      DOUBLE PRECISION,
	source              TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_rainfall_events_type ON rainfall_events (event_type);
CREATE INDEX IF NOT EXISTS idx_rainfall_events_return_period ON rainfall_events (return_period_years);

CREATE TABLE IF NOT EXISTS simulations (
	simulation_id     TEXT PRIMARY KEY,
	catchment_id      TEXT NOT NULL,
	rainfall_event_id TEXT,
	runoff_coeff      DOUBLE PRECISION NOT NULL,
	area_km2          DOUBLE PRECISION NOT NULL,
	capacity_m3s      DOUBLE PRECISION NOT NULL,
	capacity_used_m3s DOUBLE PRECISION NOT NULL,
	series            JSONB NOT NULL,
	peak_risk         DOUBLE PRECISION NOT NULL,
	peak_time         TEXT,
	notes             TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_simulations_catchment ON simulations (catchment_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_simulations_peak_risk ON simulations (peak_risk DESC);
`

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
