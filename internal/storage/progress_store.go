package storage

import (
	"context"
	"time"
)

// RunProgress represents how far a trend run for a given day has advanced.
type RunProgress struct {
	Today      time.Time // run date the progress belongs to
	NextOffset int       // first catalog offset not yet processed
	UpdatedAt  time.Time
}

// ProgressStore provides persistence for trend run progress.
// This enables resuming an interrupted run at chunk granularity without
// recomputing chunks that already committed.
type ProgressStore interface {
	// GetProgress returns the saved progress for today.
	// Returns ErrNotFound if no progress has been saved for that day.
	GetProgress(ctx context.Context, today time.Time) (*RunProgress, error)

	// SetProgress saves progress, replacing any earlier value for the same day.
	SetProgress(ctx context.Context, progress *RunProgress) error
}
