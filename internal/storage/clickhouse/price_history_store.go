package clickhouse

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
// It mirrors the PostgreSQL price_history table; seq carries the PostgreSQL
// id so same-date tie-breaks resolve identically on both backends.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

const observationColumns = `
	seq, product_id, group_id, sub_type_name, date_point, period_type,
	low_price, mid_price, high_price, market_price, direct_low_price
`

// InsertBulk appends observations in one batch and returns the number stored.
// Observations without an ID are assigned sequences after the current maximum.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, obs []*domain.PriceObservation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	needSeq := false
	for _, o := range obs {
		if o == nil || o.ProductID == 0 || o.Date.IsZero() || o.ID < 0 {
			return 0, storage.ErrInvalidInput
		}
		if o.ID == 0 {
			needSeq = true
		}
	}

	var next int64
	if needSeq {
		var maxSeq uint64
		if err := s.conn.QueryRow(ctx, `SELECT max(seq) FROM price_history`).Scan(&maxSeq); err != nil {
			return 0, fmt.Errorf("query max seq: %w", err)
		}
		next = int64(maxSeq)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (`+observationColumns+`)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	ids := make([]int64, len(obs))
	for i, o := range obs {
		ids[i] = o.ID
		if ids[i] == 0 {
			next++
			ids[i] = next
		}
		periodType := o.PeriodType
		if periodType == "" {
			periodType = domain.PeriodDaily
		}

		err = batch.Append(
			uint64(ids[i]), o.ProductID, o.GroupID, o.SubTypeName, domain.DateOf(o.Date), periodType,
			o.LowPrice, o.MidPrice, o.HighPrice, o.MarketPrice, o.DirectLowPrice,
		)
		if err != nil {
			return 0, fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}

	for i, o := range obs {
		o.ID = ids[i]
	}
	return len(obs), nil
}

// Latest returns the most recent observation dated on or before asOf.
func (s *PriceHistoryStore) Latest(ctx context.Context, productIDs []int64, asOf time.Time) ([]*domain.PriceObservation, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT` + observationColumns + `
		FROM price_history
		WHERE product_id IN (` + idList(productIDs) + `)
		  AND market_price IS NOT NULL
		  AND date_point <= toDate(?)
		ORDER BY product_id, sub_type_name, date_point DESC, seq DESC
		LIMIT 1 BY product_id, sub_type_name
	`

	rows, err := s.conn.Query(ctx, query, dateParam(asOf))
	if err != nil {
		return nil, fmt.Errorf("query latest prices: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Nearest returns the observation dated on or before target closest to target.
func (s *PriceHistoryStore) Nearest(ctx context.Context, productIDs []int64, target time.Time) ([]*domain.PriceObservation, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT` + observationColumns + `
		FROM price_history
		WHERE product_id IN (` + idList(productIDs) + `)
		  AND market_price IS NOT NULL
		  AND date_point <= toDate(?)
		ORDER BY product_id, sub_type_name, abs(dateDiff('day', date_point, toDate(?))) ASC, date_point DESC, seq DESC
		LIMIT 1 BY product_id, sub_type_name
	`

	d := dateParam(target)
	rows, err := s.conn.Query(ctx, query, d, d)
	if err != nil {
		return nil, fmt.Errorf("query nearest prices: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Earliest returns the oldest observation.
func (s *PriceHistoryStore) Earliest(ctx context.Context, productIDs []int64) ([]*domain.PriceObservation, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT` + observationColumns + `
		FROM price_history
		WHERE product_id IN (` + idList(productIDs) + `)
		  AND market_price IS NOT NULL
		ORDER BY product_id, sub_type_name, date_point ASC, seq DESC
		LIMIT 1 BY product_id, sub_type_name
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query earliest prices: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// idList renders ids as a comma-separated literal list. Integers only, so no
// quoting is needed.
func idList(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

func dateParam(t time.Time) string {
	return domain.DateOf(t).Format("2006-01-02")
}

// scanObservations scans multiple rows.
func scanObservations(rows chRows) ([]*domain.PriceObservation, error) {
	var result []*domain.PriceObservation

	for rows.Next() {
		var o domain.PriceObservation
		var seq uint64

		err := rows.Scan(
			&seq, &o.ProductID, &o.GroupID, &o.SubTypeName, &o.Date, &o.PeriodType,
			&o.LowPrice, &o.MidPrice, &o.HighPrice, &o.MarketPrice, &o.DirectLowPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}

		o.ID = int64(seq)
		o.Date = domain.DateOf(o.Date)
		result = append(result, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}

	return result, nil
}
