package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/taskbook/internal/config"
)

// RecordsTable is the table created by migrations/000001.
const RecordsTable = "subject_records"

// NewPostgresPool creates and validates a PostgreSQL connection pool and
// checks that the records table has been migrated.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxDBConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var table *string
	if err := pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, RecordsTable).Scan(&table); err != nil {
		pool.Close()
		return nil, fmt.Errorf("check %s table: %w", RecordsTable, err)
	}
	if table == nil {
		pool.Close()
		return nil, fmt.Errorf("table %s is missing, run `migrate up` first", RecordsTable)
	}

	log.Info().
		Int32("max_conns", cfg.MaxDBConns).
		Msg("PostgreSQL connected")

	return pool, nil
}
