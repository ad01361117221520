package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using PostgreSQL.
// Reads use DISTINCT ON over (product_id, sub_type_name) so each chunk costs
// one query per window regardless of how many products it holds.
type PriceHistoryStore struct {
	pool *Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(pool *Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

const observationColumns = `
	id, product_id, group_id, sub_type_name, date_point, period_type,
	low_price, mid_price, high_price, market_price, direct_low_price
`

// InsertBulk appends observations atomically and returns the number stored.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, obs []*domain.PriceObservation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	for _, o := range obs {
		if o == nil || o.ProductID == 0 || o.Date.IsZero() {
			return 0, storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, o := range obs {
		periodType := o.PeriodType
		if periodType == "" {
			periodType = domain.PeriodDaily
		}
		b.Queue(`
			INSERT INTO price_history (
				product_id, group_id, sub_type_name, date_point, period_type,
				low_price, mid_price, high_price, market_price, direct_low_price
			) VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`,
			o.ProductID, o.GroupID, o.SubTypeName, domain.DateOf(o.Date), periodType,
			o.LowPrice, o.MidPrice, o.HighPrice, o.MarketPrice, o.DirectLowPrice,
		)
	}

	br := tx.SendBatch(ctx, b)
	ids := make([]int64, len(obs))
	for i := range obs {
		if err := br.QueryRow().Scan(&ids[i]); err != nil {
			br.Close()
			return 0, fmt.Errorf("insert price observation in bulk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
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
		SELECT DISTINCT ON (product_id, sub_type_name)` + observationColumns + `
		FROM price_history
		WHERE product_id = ANY($1)
		  AND market_price IS NOT NULL
		  AND date_point <= $2::date
		ORDER BY product_id, sub_type_name, date_point DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, productIDs, domain.DateOf(asOf))
	if err != nil {
		return nil, fmt.Errorf("query latest prices: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Nearest returns the observation dated on or before target closest to target.
// Distance ties prefer the later date, then the highest id.
func (s *PriceHistoryStore) Nearest(ctx context.Context, productIDs []int64, target time.Time) ([]*domain.PriceObservation, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT ON (product_id, sub_type_name)` + observationColumns + `
		FROM price_history
		WHERE product_id = ANY($1)
		  AND market_price IS NOT NULL
		  AND date_point <= $2::date
		ORDER BY product_id, sub_type_name, ABS(date_point - $2::date) ASC, date_point DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, productIDs, domain.DateOf(target))
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
		SELECT DISTINCT ON (product_id, sub_type_name)` + observationColumns + `
		FROM price_history
		WHERE product_id = ANY($1)
		  AND market_price IS NOT NULL
		ORDER BY product_id, sub_type_name, date_point ASC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query earliest prices: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetSeries returns all observations for one variant ordered by date, id ASC.
func (s *PriceHistoryStore) GetSeries(ctx context.Context, productID int64, variant string) ([]*domain.PriceObservation, error) {
	query := `
		SELECT` + observationColumns + `
		FROM price_history
		WHERE product_id = $1 AND sub_type_name = $2
		ORDER BY date_point ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, productID, variant)
	if err != nil {
		return nil, fmt.Errorf("query price series: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// scanObservations scans multiple rows into a slice of PriceObservation.
func scanObservations(rows pgx.Rows) ([]*domain.PriceObservation, error) {
	var result []*domain.PriceObservation

	for rows.Next() {
		var o domain.PriceObservation
		err := rows.Scan(
			&o.ID,
			&o.ProductID,
			&o.GroupID,
			&o.SubTypeName,
			&o.Date,
			&o.PeriodType,
			&o.LowPrice,
			&o.MidPrice,
			&o.HighPrice,
			&o.MarketPrice,
			&o.DirectLowPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price observation row: %w", err)
		}
		result = append(result, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price observation rows: %w", err)
	}

	return result, nil
}
