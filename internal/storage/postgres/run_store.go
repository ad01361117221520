package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.TrendRun) error {
	if run == nil || run.RunID == uuid.Nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_change_runs (
			run_id, today, started_at, finished_at, total_items,
			chunks_attempted, chunks_skipped, items_written, status, error
		) VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		run.RunID.String(),
		domain.DateOf(run.Today),
		run.StartedAt,
		run.FinishedAt,
		run.TotalItems,
		run.ChunksAttempted,
		run.ChunksSkipped,
		run.ItemsWritten,
		string(run.Status),
		run.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Latest returns the most recently started run. Returns ErrNotFound if none.
func (s *RunStore) Latest(ctx context.Context) (*domain.TrendRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id::text, today, started_at, finished_at, total_items,
		       chunks_attempted, chunks_skipped, items_written, status, error
		FROM price_change_runs
		ORDER BY started_at DESC
		LIMIT 1
	`)

	var r domain.TrendRun
	var runID, status string
	err := row.Scan(
		&runID,
		&r.Today,
		&r.StartedAt,
		&r.FinishedAt,
		&r.TotalItems,
		&r.ChunksAttempted,
		&r.ChunksSkipped,
		&r.ItemsWritten,
		&status,
		&r.Error,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest run: %w", err)
	}

	r.RunID, err = uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	r.Status = domain.RunStatus(status)
	return &r, nil
}
