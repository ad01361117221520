package postgres

import (
	"context"
	"fmt"
	"time"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// ProgressStore is a PostgreSQL implementation of storage.ProgressStore.
// Keeps one row per run date in price_change_progress.
type ProgressStore struct {
	pool *Pool
}

// NewProgressStore creates a new PostgreSQL progress store.
func NewProgressStore(pool *Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

// GetProgress returns the saved progress for today.
func (s *ProgressStore) GetProgress(ctx context.Context, today time.Time) (*storage.RunProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_date, next_offset, updated_at
		FROM price_change_progress
		WHERE run_date = $1::date
	`, domain.DateOf(today))

	var p storage.RunProgress
	if err := row.Scan(&p.Today, &p.NextOffset, &p.UpdatedAt); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &p, nil
}

// SetProgress saves progress using upsert to handle the first write of the day.
func (s *ProgressStore) SetProgress(ctx context.Context, progress *storage.RunProgress) error {
	if progress == nil || progress.Today.IsZero() || progress.NextOffset < 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_change_progress (run_date, next_offset, updated_at)
		VALUES ($1::date, $2, NOW())
		ON CONFLICT (run_date) DO UPDATE
		SET next_offset = EXCLUDED.next_offset,
		    updated_at = NOW()
	`, domain.DateOf(progress.Today), progress.NextOffset)
	if err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}
