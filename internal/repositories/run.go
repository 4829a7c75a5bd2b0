package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/shared"
)

// RunRepository keeps the history of cache warm runs in the resolve_runs table.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a new run with a generated ID and the current time.
func (r *RunRepository) Start(ctx context.Context, query string) (*models.ResolveRun, error) {
	run := &models.ResolveRun{ID: shared.GenerateID(), Query: query, StartedAt: time.Now().UTC()}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resolve_runs (id, query, started_at) VALUES (?, ?, ?)`,
		run.ID, nullString(query), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// Finish stores the run's counters and marks it finished.
func (r *RunRepository) Finish(ctx context.Context, run *models.ResolveRun) error {
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE resolve_runs
		SET total = ?, resolved = ?, failed = ?, finished_at = ?
		WHERE id = ?
	`, run.Total, run.Resolved, run.Failed, now, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}

	run.FinishedAt = &now
	return nil
}

// Get retrieves a run by ID, or nil.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.ResolveRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, query, total, resolved, failed, started_at, finished_at
		FROM resolve_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// Recent returns up to limit runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]*models.ResolveRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, query, total, resolved, failed, started_at, finished_at
		FROM resolve_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ResolveRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.ResolveRun, error) {
	var (
		run        models.ResolveRun
		query      sql.NullString
		finishedAt sql.NullTime
	)

	err := s.Scan(&run.ID, &query, &run.Total, &run.Resolved, &run.Failed, &run.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Query = query.String
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}
