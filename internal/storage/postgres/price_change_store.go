package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// PriceChangeStore implements storage.PriceChangeStore using PostgreSQL.
// Relies on the price_change_product_id_key constraint installed by migrations.
type PriceChangeStore struct {
	pool *Pool
}

// NewPriceChangeStore creates a new PriceChangeStore.
func NewPriceChangeStore(pool *Pool) *PriceChangeStore {
	return &PriceChangeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceChangeStore = (*PriceChangeStore)(nil)

// priceChangeColumns lists price_change columns in bind order:
// the head columns, four per window in domain.Windows order, then last_updated.
var priceChangeColumns = func() []string {
	cols := []string{"product_id", "sub_type_name", "current_price", "current_price_date"}
	for _, w := range domain.Windows {
		cols = append(cols,
			"price_"+w.String(),
			"price_"+w.String()+"_date",
			"change_"+w.String()+"_pct",
			"change_"+w.String()+"_dollar",
		)
	}
	return append(cols, "last_updated")
}()

var upsertPriceChangeSQL = func() string {
	placeholders := make([]string, len(priceChangeColumns))
	var updates []string
	for i, c := range priceChangeColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c != "product_id" {
			updates = append(updates, c+" = EXCLUDED."+c)
		}
	}
	return "INSERT INTO price_change (" + strings.Join(priceChangeColumns, ", ") + ")\n" +
		"VALUES (" + strings.Join(placeholders, ", ") + ")\n" +
		"ON CONFLICT (product_id) DO UPDATE SET " + strings.Join(updates, ", ")
}()

var selectPriceChangeSQL = "SELECT " + strings.Join(priceChangeColumns, ", ") + " FROM price_change"

// UpsertBulk inserts or replaces all records in one transaction.
// On failure the whole batch is rolled back.
func (s *PriceChangeStore) UpsertBulk(ctx context.Context, records []*domain.PriceChange) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.ProductID == 0 {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, r := range records {
		b.Queue(upsertPriceChangeSQL, priceChangeArgs(r)...)
	}

	br := tx.SendBatch(ctx, b)
	for range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert price change in bulk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByProductID retrieves a record. Returns ErrNotFound if not exists.
func (s *PriceChangeStore) GetByProductID(ctx context.Context, productID int64) (*domain.PriceChange, error) {
	row := s.pool.QueryRow(ctx, selectPriceChangeSQL+" WHERE product_id = $1", productID)
	r, err := scanPriceChange(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get price change by product id: %w", err)
	}
	return r, nil
}

// ListByChange returns records ordered by the window's percent change.
func (s *PriceChangeStore) ListByChange(ctx context.Context, window domain.Window, ascending bool, limit int) ([]*domain.PriceChange, error) {
	if !window.IsValid() || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	col := "change_" + window.String() + "_pct"
	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	query := fmt.Sprintf("%s WHERE %s IS NOT NULL ORDER BY %s %s, product_id ASC LIMIT $1",
		selectPriceChangeSQL, col, col, dir)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list price changes by %s: %w", window, err)
	}
	defer rows.Close()

	var result []*domain.PriceChange
	for rows.Next() {
		r, err := scanPriceChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price change row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price change rows: %w", err)
	}
	return result, nil
}

func priceChangeArgs(r *domain.PriceChange) []any {
	args := make([]any, 0, len(priceChangeColumns))
	args = append(args, r.ProductID, r.SubTypeName, r.CurrentPrice, domain.DateOf(r.CurrentPriceDate))
	for _, w := range domain.Windows {
		wc := r.Window(w)
		var date *time.Time
		if wc.Date != nil {
			d := domain.DateOf(*wc.Date)
			date = &d
		}
		args = append(args, wc.Price, date, wc.ChangePct, wc.ChangeDollar)
	}
	return append(args, r.LastUpdated)
}

// scanPriceChange scans a single row into a PriceChange.
func scanPriceChange(row pgx.Row) (*domain.PriceChange, error) {
	var r domain.PriceChange
	windows := make([]domain.WindowChange, len(domain.Windows))

	dest := []any{&r.ProductID, &r.SubTypeName, &r.CurrentPrice, &r.CurrentPriceDate}
	for i := range windows {
		dest = append(dest, &windows[i].Price, &windows[i].Date, &windows[i].ChangePct, &windows[i].ChangeDollar)
	}
	dest = append(dest, &r.LastUpdated)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	r.Windows = make(map[domain.Window]domain.WindowChange, len(domain.Windows))
	for i, w := range domain.Windows {
		r.Windows[w] = windows[i]
	}
	return &r, nil
}
