package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"econ-snapshot/internal/config"
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS snapshots (
        id           UUID PRIMARY KEY,
        taken_at     TIMESTAMPTZ NOT NULL,
        bucket_ts    TIMESTAMPTZ,
        field_values JSONB NOT NULL,
        live         JSONB NOT NULL,
        sources      TEXT[] NOT NULL DEFAULT '{}',
        data_source  TEXT NOT NULL,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS snapshots_taken_at_idx ON snapshots (taken_at DESC);

    CREATE TABLE IF NOT EXISTS field_alerts (
        id            BIGSERIAL PRIMARY KEY,
        snapshot_id   UUID NOT NULL REFERENCES snapshots (id) ON DELETE CASCADE,
        field         TEXT NOT NULL,
        previous      NUMERIC NOT NULL,
        current       NUMERIC NOT NULL,
        change_pct    NUMERIC NOT NULL,
        threshold_pct NUMERIC NOT NULL,
        direction     TEXT NOT NULL,
        channels      TEXT[] NOT NULL DEFAULT '{}',
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
        UNIQUE (snapshot_id, field)
    );
    CREATE INDEX IF NOT EXISTS field_alerts_field_created_idx ON field_alerts (field, created_at DESC);`

// EnsureSchema creates the archive tables when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return ErrNotConfigured
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
