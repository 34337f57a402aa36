package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecordRepository keeps records in the subject_records table.
// Every write is a single statement, so replacement is atomic.
type PostgresRecordRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRecordRepository(pool *pgxpool.Pool) *PostgresRecordRepository {
	return &PostgresRecordRepository{pool: pool}
}

func (r *PostgresRecordRepository) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT payload FROM subject_records WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return data, err
}

func (r *PostgresRecordRepository) Create(ctx context.Context, name string, data []byte) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO subject_records (name, payload) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordExists
	}
	return nil
}

func (r *PostgresRecordRepository) Replace(ctx context.Context, name string, data []byte) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE subject_records SET payload = $2, updated_at = NOW() WHERE name = $1`,
		name, data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresRecordRepository) Delete(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subject_records WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *PostgresRecordRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM subject_records ORDER BY name COLLATE "C" ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return names, nil
}
