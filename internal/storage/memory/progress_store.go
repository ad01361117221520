package memory

import (
	"context"
	"sync"
	"time"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// ProgressStore is an in-memory implementation of storage.ProgressStore.
type ProgressStore struct {
	mu       sync.RWMutex
	progress map[time.Time]storage.RunProgress // keyed by run date
}

// NewProgressStore creates a new in-memory progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		progress: make(map[time.Time]storage.RunProgress),
	}
}

// GetProgress returns the saved progress for today.
func (s *ProgressStore) GetProgress(_ context.Context, today time.Time) (*storage.RunProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[domain.DateOf(today)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// SetProgress saves progress, replacing any earlier value for the same day.
func (s *ProgressStore) SetProgress(_ context.Context, progress *storage.RunProgress) error {
	if progress == nil || progress.Today.IsZero() || progress.NextOffset < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := *progress
	p.Today = domain.DateOf(progress.Today)
	s.progress[p.Today] = p
	return nil
}

var _ storage.ProgressStore = (*ProgressStore)(nil)
