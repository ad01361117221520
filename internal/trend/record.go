package trend

import (
	"errors"
	"fmt"
	"math"
	"time"

	"tcg-price-trends/internal/domain"
)

// Errors returned by ComputeRecord.
var (
	ErrNoCurrentPrice = errors.New("no current price")
	ErrInvalidPrice   = errors.New("invalid price")
)

// ComputeRecord derives the price change record for a snapshot.
// Returns ErrNoCurrentPrice when the snapshot has no current price and
// ErrInvalidPrice when the current price is negative or not finite.
// A window whose comparison price is malformed is treated as absent.
func ComputeRecord(s *Snapshot, now time.Time) (*domain.PriceChange, error) {
	if s == nil || s.Current == nil || s.Current.MarketPrice == nil {
		return nil, ErrNoCurrentPrice
	}
	current := *s.Current.MarketPrice
	if !validPrice(current) {
		return nil, fmt.Errorf("product %d: %w: %v", s.ProductID, ErrInvalidPrice, current)
	}

	rec := &domain.PriceChange{
		ProductID:        s.ProductID,
		SubTypeName:      s.SubTypeName,
		CurrentPrice:     current,
		CurrentPriceDate: domain.DateOf(s.Current.Date),
		Windows:          make(map[domain.Window]domain.WindowChange, len(domain.Windows)),
		LastUpdated:      now,
	}

	for _, w := range domain.Windows {
		obs := s.Windows[w]
		if obs == nil || obs.MarketPrice == nil || !validPrice(*obs.MarketPrice) {
			rec.Windows[w] = domain.WindowChange{}
			continue
		}

		price := *obs.MarketPrice
		date := domain.DateOf(obs.Date)
		rec.Windows[w] = domain.WindowChange{
			PricePoint:   domain.PricePoint{Price: &price, Date: &date},
			ChangePct:    PercentChange(&price, &current),
			ChangeDollar: DollarChange(&price, &current),
		}
	}

	return rec, nil
}

func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
