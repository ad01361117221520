package domain

import "time"

// PeriodDaily marks a single-day price observation.
const PeriodDaily = "daily"

// PriceObservation represents one dated price sample for a product variant.
// Corresponds to price_history table in PostgreSQL (and ClickHouse mirror).
// Observations are append-only; (ProductID, SubTypeName, Date) is not unique.
type PriceObservation struct {
	ID             int64     // ingestion sequence, assigned by the store
	ProductID      int64     // FK to products
	GroupID        int64     // FK to groups
	SubTypeName    string    // price variant, may be empty
	Date           time.Time // calendar date (UTC midnight)
	PeriodType     string    // "daily"
	LowPrice       *float64  // nullable
	MidPrice       *float64  // nullable
	HighPrice      *float64  // nullable
	MarketPrice    *float64  // nullable, primary price for trends
	DirectLowPrice *float64  // nullable
}

// HasAnyPrice reports whether at least one price field is set.
func (o *PriceObservation) HasAnyPrice() bool {
	return o.LowPrice != nil || o.MidPrice != nil || o.HighPrice != nil ||
		o.MarketPrice != nil || o.DirectLowPrice != nil
}

// DateOf truncates t to a UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
