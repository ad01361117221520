package app

import (
	"context"
	"time"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/observability"
	"tcg-price-trends/internal/storage"
)

// instrumentedHistory records query latency and errors for a history store.
type instrumentedHistory struct {
	next     storage.PriceHistoryStore
	database string
	metrics  *observability.Metrics
}

// Instrument wraps history so every call is recorded under database.
// A nil metrics returns history unchanged.
func Instrument(history storage.PriceHistoryStore, database string, metrics *observability.Metrics) storage.PriceHistoryStore {
	if metrics == nil {
		return history
	}
	return &instrumentedHistory{next: history, database: database, metrics: metrics}
}

func (h *instrumentedHistory) observe(op string, start time.Time, err error) {
	h.metrics.RecordDBQuery(h.database, op, time.Since(start).Seconds(), err)
}

func (h *instrumentedHistory) InsertBulk(ctx context.Context, obs []*domain.PriceObservation) (int, error) {
	start := time.Now()
	n, err := h.next.InsertBulk(ctx, obs)
	h.observe("insert_bulk", start, err)
	return n, err
}

func (h *instrumentedHistory) Latest(ctx context.Context, productIDs []int64, asOf time.Time) ([]*domain.PriceObservation, error) {
	start := time.Now()
	rows, err := h.next.Latest(ctx, productIDs, asOf)
	h.observe("latest", start, err)
	return rows, err
}

func (h *instrumentedHistory) Nearest(ctx context.Context, productIDs []int64, target time.Time) ([]*domain.PriceObservation, error) {
	start := time.Now()
	rows, err := h.next.Nearest(ctx, productIDs, target)
	h.observe("nearest", start, err)
	return rows, err
}

func (h *instrumentedHistory) Earliest(ctx context.Context, productIDs []int64) ([]*domain.PriceObservation, error) {
	start := time.Now()
	rows, err := h.next.Earliest(ctx, productIDs)
	h.observe("earliest", start, err)
	return rows, err
}

var _ storage.PriceHistoryStore = (*instrumentedHistory)(nil)
