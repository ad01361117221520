package trend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// Snapshot holds the resolved observations for one catalog item.
type Snapshot struct {
	ProductID   int64
	SubTypeName string
	Current     *domain.PriceObservation
	Windows     map[domain.Window]*domain.PriceObservation // absent key = no match
}

// Builder resolves every lookback window for a chunk of catalog items.
// It issues one grouped history query per window, so the number of store
// round-trips per chunk is constant regardless of chunk size.
type Builder struct {
	history storage.PriceHistoryStore
}

// NewBuilder creates a new Builder.
func NewBuilder(history storage.PriceHistoryStore) *Builder {
	return &Builder{history: history}
}

// variantKey identifies a price series.
type variantKey struct {
	productID int64
	variant   string
}

// Build returns snapshots keyed by product id. Items without a current price
// on or before today are absent from the result.
func (b *Builder) Build(ctx context.Context, items []domain.CatalogItem, today time.Time) (map[int64]*Snapshot, error) {
	result := make(map[int64]*Snapshot, len(items))
	if len(items) == 0 {
		return result, nil
	}

	today = domain.DateOf(today)
	ids := make([]int64, 0, len(items))
	catalogVariant := make(map[int64]string, len(items))
	for _, it := range items {
		if _, dup := catalogVariant[it.ProductID]; dup {
			continue
		}
		catalogVariant[it.ProductID] = it.SubTypeName
		ids = append(ids, it.ProductID)
	}

	// Current prices decide which variant each item is tracked under.
	current, err := b.history.Latest(ctx, ids, today)
	if err != nil {
		return nil, fmt.Errorf("query current prices: %w", err)
	}
	for pid, obs := range chooseVariants(current, catalogVariant) {
		result[pid] = &Snapshot{
			ProductID:   pid,
			SubTypeName: obs.SubTypeName,
			Current:     obs,
			Windows:     make(map[domain.Window]*domain.PriceObservation, len(domain.Windows)),
		}
	}
	if len(result) == 0 {
		return result, nil
	}

	targets := TargetDates(today)
	for _, w := range windowedOrder {
		rows, err := b.history.Nearest(ctx, ids, targets[w])
		if err != nil {
			return nil, fmt.Errorf("query %s window: %w", w, err)
		}
		attach(result, w, rows)
	}

	oldest, err := b.history.Earliest(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("query %s window: %w", domain.WindowAll, err)
	}
	attach(result, domain.WindowAll, oldest)

	return result, nil
}

// chooseVariants picks one current observation per product: the catalog's own
// variant when it is priced, otherwise the lexicographically smallest priced
// variant.
func chooseVariants(rows []*domain.PriceObservation, catalogVariant map[int64]string) map[int64]*domain.PriceObservation {
	byProduct := make(map[int64][]*domain.PriceObservation)
	for _, r := range rows {
		if r == nil || r.MarketPrice == nil {
			continue
		}
		if _, ok := catalogVariant[r.ProductID]; !ok {
			continue
		}
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r)
	}

	chosen := make(map[int64]*domain.PriceObservation, len(byProduct))
	for pid, candidates := range byProduct {
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].SubTypeName < candidates[j].SubTypeName
		})
		pick := candidates[0]
		for _, c := range candidates {
			if c.SubTypeName == catalogVariant[pid] {
				pick = c
				break
			}
		}
		chosen[pid] = pick
	}
	return chosen
}

// attach stores rows matching each snapshot's chosen variant under window w.
func attach(snapshots map[int64]*Snapshot, w domain.Window, rows []*domain.PriceObservation) {
	for _, r := range rows {
		if r == nil || r.MarketPrice == nil {
			continue
		}
		s, ok := snapshots[r.ProductID]
		if !ok || s.SubTypeName != r.SubTypeName {
			continue
		}
		s.Windows[w] = r
	}
}
