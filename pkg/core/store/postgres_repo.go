package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the run archive table.
const Schema = `
CREATE TABLE IF NOT EXISTS settlement_runs (
	id           UUID PRIMARY KEY,
	period       TEXT NOT NULL,
	mode         TEXT NOT NULL,
	total_payout NUMERIC(18, 2) NOT NULL,
	passed       BOOLEAN NOT NULL,
	run_json     JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS settlement_runs_period_idx ON settlement_runs (period, created_at DESC);
`

// PostgresRunRepo stores runs in the settlement_runs table as JSONB.
type PostgresRunRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRunRepo(pool *pgxpool.Pool) *PostgresRunRepo {
	return &PostgresRunRepo{pool: pool}
}

// EnsureSchema creates the table when it does not exist.
func (r *PostgresRunRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create settlement_runs: %w", err)
	}
	return nil
}

// Save upserts a run by id.
func (r *PostgresRunRepo) Save(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	query := `
		INSERT INTO settlement_runs (id, period, mode, total_payout, passed, run_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			total_payout = EXCLUDED.total_payout,
			passed = EXCLUDED.passed,
			run_json = EXCLUDED.run_json
	`
	_, err = r.pool.Exec(ctx, query, run.ID, run.Period, run.Mode, run.TotalPayout, run.Passed, data, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

func (r *PostgresRunRepo) Load(ctx context.Context, id string) (*Run, error) {
	return r.one(ctx, `SELECT run_json FROM settlement_runs WHERE id = $1`, id)
}

func (r *PostgresRunRepo) Latest(ctx context.Context, period string) (*Run, error) {
	return r.one(ctx, `
		SELECT run_json FROM settlement_runs
		WHERE period = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, period)
}

func (r *PostgresRunRepo) List(ctx context.Context, period string) ([]*Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_json FROM settlement_runs
		WHERE period = $1
		ORDER BY created_at
	`, period)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for %s: %w", period, err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := decodeRun(data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

func (r *PostgresRunRepo) one(ctx context.Context, query string, arg string) (*Run, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, query, arg).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup %s: %w", arg, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", arg, err)
	}
	return decodeRun(data)
}

func decodeRun(data []byte) (*Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}
