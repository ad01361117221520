package memory

import (
	"context"
	"sort"
	"sync"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// CatalogStore is an in-memory implementation of storage.CatalogStore.
type CatalogStore struct {
	mu       sync.RWMutex
	groups   map[int64]*domain.Group   // keyed by group_id
	products map[int64]*domain.Product // keyed by product_id
}

// NewCatalogStore creates a new in-memory catalog store.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		groups:   make(map[int64]*domain.Group),
		products: make(map[int64]*domain.Product),
	}
}

// UpsertGroups inserts or refreshes groups keyed by group_id.
func (s *CatalogStore) UpsertGroups(_ context.Context, groups []*domain.Group) error {
	for _, g := range groups {
		if g == nil || g.GroupID == 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range groups {
		groupCopy := *g
		s.groups[g.GroupID] = &groupCopy
	}
	return nil
}

// UpsertProducts inserts or refreshes products keyed by product_id.
func (s *CatalogStore) UpsertProducts(_ context.Context, products []*domain.Product) error {
	for _, p := range products {
		if p == nil || p.ProductID == 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		productCopy := *p
		s.products[p.ProductID] = &productCopy
	}
	return nil
}

// GetProduct retrieves a product by id. Returns ErrNotFound if not exists.
func (s *CatalogStore) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	productCopy := *p
	return &productCopy, nil
}

// Count returns the number of catalog items.
func (s *CatalogStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.products), nil
}

// ListPage returns up to limit items ordered by product_id ASC, skipping offset.
func (s *CatalogStore) ListPage(_ context.Context, offset, limit int) ([]domain.CatalogItem, error) {
	if offset < 0 || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	items := make([]domain.CatalogItem, 0, end-offset)
	for _, id := range ids[offset:end] {
		items = append(items, domain.CatalogItem{
			ProductID:   id,
			SubTypeName: s.products[id].SubTypeName,
		})
	}
	return items, nil
}

var _ storage.CatalogStore = (*CatalogStore)(nil)
