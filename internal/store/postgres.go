package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS prioritizer_runs (
			run_id      UUID PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			error       TEXT,
			exclusions  INTEGER NOT NULL DEFAULT 0,
			top         JSONB,
			result      JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			duration_ms BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS prioritizer_runs_created_at_idx ON prioritizer_runs (created_at DESC);`)
	return err
}

const runColumns = `run_id, name, status, error, exclusions, top, created_at, duration_ms`

func (s *PostgresStore) SaveRun(ctx context.Context, run *Run) error {
	topJSON, err := json.Marshal(run.Top)
	if err != nil {
		return fmt.Errorf("encode top: %w", err)
	}
	var resultJSON []byte
	if run.Result != nil {
		if resultJSON, err = json.Marshal(run.Result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO prioritizer_runs (run_id, name, status, error, exclusions, top, result, created_at, duration_ms)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status, error = EXCLUDED.error, exclusions = EXCLUDED.exclusions,
			top = EXCLUDED.top, result = EXCLUDED.result, duration_ms = EXCLUDED.duration_ms`,
		run.ID, run.Name, run.Status, run.Error, run.Exclusions, topJSON, resultJSON, run.CreatedAt, run.DurationMs,
	)
	return err
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var resultJSON []byte
	r, err := scanRun(s.pool.QueryRow(ctx, `
		SELECT `+runColumns+`, result
		FROM prioritizer_runs WHERE run_id = $1`, id,
	), &resultJSON)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &r.Result); err != nil {
			return nil, fmt.Errorf("decode result of run %s: %w", id, err)
		}
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM prioritizer_runs WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}
	if filter.Name != "" {
		n++
		query += fmt.Sprintf(" AND name = $%d", n)
		args = append(args, filter.Name)
	}
	query += " ORDER BY created_at DESC"

	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row, extra ...any) (*Run, error) {
	r := &Run{}
	var runError sql.NullString
	var topJSON []byte
	dest := append([]any{
		&r.ID, &r.Name, &r.Status, &runError, &r.Exclusions, &topJSON, &r.CreatedAt, &r.DurationMs,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if runError.Valid {
		r.Error = runError.String
	}
	if topJSON != nil {
		_ = json.Unmarshal(topJSON, &r.Top)
	}
	return r, nil
}
