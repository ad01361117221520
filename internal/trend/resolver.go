package trend

import (
	"time"

	"tcg-price-trends/internal/domain"
)

// Nearest returns the observation whose date is closest to target.
// Only observations with a market price qualify; when notAfter is set,
// observations dated after target are ignored to avoid look-ahead.
// Ties in distance prefer the later date, ties on the same date prefer the
// highest ingestion sequence. Returns false if nothing qualifies.
func Nearest(target time.Time, obs []*domain.PriceObservation, notAfter bool) (*domain.PriceObservation, bool) {
	target = domain.DateOf(target)

	var best *domain.PriceObservation
	bestDist := 0
	for _, o := range obs {
		if o == nil || o.MarketPrice == nil {
			continue
		}
		d := domain.DateOf(o.Date)
		if notAfter && d.After(target) {
			continue
		}
		dist := absDays(d, target)
		if best == nil || dist < bestDist || (dist == bestDist && newer(o, best)) {
			best = o
			bestDist = dist
		}
	}
	return best, best != nil
}

// Latest returns the most recent priced observation dated on or before asOf.
func Latest(obs []*domain.PriceObservation, asOf time.Time) (*domain.PriceObservation, bool) {
	asOf = domain.DateOf(asOf)

	var best *domain.PriceObservation
	for _, o := range obs {
		if o == nil || o.MarketPrice == nil || domain.DateOf(o.Date).After(asOf) {
			continue
		}
		if best == nil || newer(o, best) {
			best = o
		}
	}
	return best, best != nil
}

// Earliest returns the first priced observation ever recorded.
// Same-date ties prefer the highest ingestion sequence.
func Earliest(obs []*domain.PriceObservation) (*domain.PriceObservation, bool) {
	var best *domain.PriceObservation
	for _, o := range obs {
		if o == nil || o.MarketPrice == nil {
			continue
		}
		if best == nil {
			best = o
			continue
		}
		d, bd := domain.DateOf(o.Date), domain.DateOf(best.Date)
		if d.Before(bd) || (d.Equal(bd) && o.ID > best.ID) {
			best = o
		}
	}
	return best, best != nil
}

// newer orders by date, then ingestion sequence.
func newer(a, b *domain.PriceObservation) bool {
	da, db := domain.DateOf(a.Date), domain.DateOf(b.Date)
	if !da.Equal(db) {
		return da.After(db)
	}
	return a.ID > b.ID
}

func absDays(a, b time.Time) int {
	days := int(a.Sub(b).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
