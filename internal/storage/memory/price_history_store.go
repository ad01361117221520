package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
	"tcg-price-trends/internal/trend"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
// Selection rules are delegated to the trend resolver so the memory store and
// the SQL stores agree on ordering and tie-breaks.
type PriceHistoryStore struct {
	mu     sync.RWMutex
	nextID int64
	series map[seriesKey][]*domain.PriceObservation // keyed by (product_id, sub_type_name)
}

type seriesKey struct {
	productID int64
	variant   string
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{
		series: make(map[seriesKey][]*domain.PriceObservation),
	}
}

// InsertBulk appends observations atomically and returns the number stored.
// Each observation is assigned the next ingestion sequence.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, obs []*domain.PriceObservation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	// Validate first so a bad row leaves the store untouched
	for _, o := range obs {
		if o == nil || o.ProductID == 0 || o.Date.IsZero() {
			return 0, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range obs {
		s.nextID++
		obsCopy := *o
		obsCopy.ID = s.nextID
		o.ID = s.nextID
		obsCopy.Date = domain.DateOf(o.Date)
		if obsCopy.PeriodType == "" {
			obsCopy.PeriodType = domain.PeriodDaily
		}
		k := seriesKey{o.ProductID, o.SubTypeName}
		s.series[k] = append(s.series[k], &obsCopy)
	}
	return len(obs), nil
}

// Latest returns the most recent observation dated on or before asOf.
func (s *PriceHistoryStore) Latest(_ context.Context, productIDs []int64, asOf time.Time) ([]*domain.PriceObservation, error) {
	return s.pick(productIDs, func(obs []*domain.PriceObservation) (*domain.PriceObservation, bool) {
		return trend.Latest(obs, asOf)
	}), nil
}

// Nearest returns the observation dated on or before target closest to target.
func (s *PriceHistoryStore) Nearest(_ context.Context, productIDs []int64, target time.Time) ([]*domain.PriceObservation, error) {
	return s.pick(productIDs, func(obs []*domain.PriceObservation) (*domain.PriceObservation, bool) {
		return trend.Nearest(target, obs, true)
	}), nil
}

// Earliest returns the oldest observation.
func (s *PriceHistoryStore) Earliest(_ context.Context, productIDs []int64) ([]*domain.PriceObservation, error) {
	return s.pick(productIDs, trend.Earliest), nil
}

// GetSeries returns all observations for one variant ordered by date, id ASC.
func (s *PriceHistoryStore) GetSeries(_ context.Context, productID int64, variant string) ([]*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.series[seriesKey{productID, variant}]
	result := make([]*domain.PriceObservation, 0, len(src))
	for _, o := range src {
		obsCopy := *o
		result = append(result, &obsCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// pick applies choose to every series of the requested products.
// Results are ordered by (product_id, sub_type_name) for determinism.
func (s *PriceHistoryStore) pick(productIDs []int64, choose func([]*domain.PriceObservation) (*domain.PriceObservation, bool)) []*domain.PriceObservation {
	wanted := make(map[int64]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceObservation
	for k, obs := range s.series {
		if _, ok := wanted[k.productID]; !ok {
			continue
		}
		if o, ok := choose(obs); ok {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ProductID != result[j].ProductID {
			return result[i].ProductID < result[j].ProductID
		}
		return result[i].SubTypeName < result[j].SubTypeName
	})
	return result
}

var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)
