package memory

import (
	"context"
	"sort"
	"sync"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// PriceChangeStore is an in-memory implementation of storage.PriceChangeStore.
// Uniqueness on product_id is enforced by the map key.
type PriceChangeStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.PriceChange // keyed by product_id
}

// NewPriceChangeStore creates a new in-memory price change store.
func NewPriceChangeStore() *PriceChangeStore {
	return &PriceChangeStore{
		data: make(map[int64]*domain.PriceChange),
	}
}

// UpsertBulk inserts or replaces all records atomically.
func (s *PriceChangeStore) UpsertBulk(_ context.Context, records []*domain.PriceChange) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r == nil || r.ProductID == 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.data[r.ProductID] = copyPriceChange(r)
	}
	return nil
}

// GetByProductID retrieves a record. Returns ErrNotFound if not exists.
func (s *PriceChangeStore) GetByProductID(_ context.Context, productID int64) (*domain.PriceChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[productID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyPriceChange(r), nil
}

// ListByChange returns records ordered by the window's percent change.
func (s *PriceChangeStore) ListByChange(_ context.Context, window domain.Window, ascending bool, limit int) ([]*domain.PriceChange, error) {
	if !window.IsValid() || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceChange
	for _, r := range s.data {
		if r.Window(window).ChangePct == nil {
			continue
		}
		result = append(result, copyPriceChange(r))
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := *result[i].Window(window).ChangePct, *result[j].Window(window).ChangePct
		if a != b {
			if ascending {
				return a < b
			}
			return a > b
		}
		return result[i].ProductID < result[j].ProductID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of stored records.
func (s *PriceChangeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func copyPriceChange(r *domain.PriceChange) *domain.PriceChange {
	c := *r
	c.Windows = make(map[domain.Window]domain.WindowChange, len(r.Windows))
	for w, v := range r.Windows {
		c.Windows[w] = v
	}
	return &c
}

var _ storage.PriceChangeStore = (*PriceChangeStore)(nil)
