package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*domain.TrendRun // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[uuid.UUID]*domain.TrendRun),
	}
}

// Insert adds a run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, run *domain.TrendRun) error {
	if run == nil || run.RunID == uuid.Nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	runCopy := *run
	s.data[run.RunID] = &runCopy
	return nil
}

// Latest returns the most recently started run. Returns ErrNotFound if none.
func (s *RunStore) Latest(_ context.Context) (*domain.TrendRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.TrendRun
	for _, r := range s.data {
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	runCopy := *latest
	return &runCopy, nil
}

var _ storage.RunStore = (*RunStore)(nil)
