package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

// CatalogStore implements storage.CatalogStore using PostgreSQL.
type CatalogStore struct {
	pool *Pool
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(pool *Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CatalogStore = (*CatalogStore)(nil)

// UpsertGroups inserts or refreshes groups keyed by group_id in one transaction.
func (s *CatalogStore) UpsertGroups(ctx context.Context, groups []*domain.Group) error {
	if len(groups) == 0 {
		return nil
	}
	for _, g := range groups {
		if g == nil || g.GroupID == 0 {
			return storage.ErrInvalidInput
		}
	}

	b := &pgx.Batch{}
	for _, g := range groups {
		b.Queue(`
			INSERT INTO groups (group_id, name, category_id, modified_on)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (group_id) DO UPDATE
			SET name = EXCLUDED.name,
			    category_id = EXCLUDED.category_id,
			    modified_on = EXCLUDED.modified_on
		`, g.GroupID, g.Name, g.CategoryID, nullTime(g.ModifiedOn))
	}

	return s.sendInTx(ctx, b, "upsert groups")
}

// UpsertProducts inserts or refreshes products keyed by product_id in one transaction.
func (s *CatalogStore) UpsertProducts(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	for _, p := range products {
		if p == nil || p.ProductID == 0 {
			return storage.ErrInvalidInput
		}
	}

	b := &pgx.Batch{}
	for _, p := range products {
		b.Queue(`
			INSERT INTO products (
				product_id, category_id, group_id, name, clean_name, url, image_url, image_count,
				sub_type_name, modified_on, ext_card_type, ext_hp, ext_number, ext_rarity,
				ext_resistance, ext_retreat_cost, ext_stage, ext_upc, ext_weakness, ext_card_text,
				ext_attack1, ext_attack2, ext_attack3, ext_attack4
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
			ON CONFLICT (product_id) DO UPDATE
			SET category_id = EXCLUDED.category_id,
			    group_id = EXCLUDED.group_id,
			    name = EXCLUDED.name,
			    clean_name = EXCLUDED.clean_name,
			    url = EXCLUDED.url,
			    image_url = EXCLUDED.image_url,
			    image_count = EXCLUDED.image_count,
			    sub_type_name = EXCLUDED.sub_type_name,
			    modified_on = EXCLUDED.modified_on,
			    ext_card_type = EXCLUDED.ext_card_type,
			    ext_hp = EXCLUDED.ext_hp,
			    ext_number = EXCLUDED.ext_number,
			    ext_rarity = EXCLUDED.ext_rarity,
			    ext_resistance = EXCLUDED.ext_resistance,
			    ext_retreat_cost = EXCLUDED.ext_retreat_cost,
			    ext_stage = EXCLUDED.ext_stage,
			    ext_upc = EXCLUDED.ext_upc,
			    ext_weakness = EXCLUDED.ext_weakness,
			    ext_card_text = EXCLUDED.ext_card_text,
			    ext_attack1 = EXCLUDED.ext_attack1,
			    ext_attack2 = EXCLUDED.ext_attack2,
			    ext_attack3 = EXCLUDED.ext_attack3,
			    ext_attack4 = EXCLUDED.ext_attack4
		`,
			p.ProductID, p.CategoryID, p.GroupID, p.Name, p.CleanName, p.URL, p.ImageURL, p.ImageCount,
			p.SubTypeName, nullTime(p.ModifiedOn), p.ExtCardType, p.ExtHP, p.ExtNumber, p.ExtRarity,
			p.ExtResistance, p.ExtRetreatCost, p.ExtStage, p.ExtUPC, p.ExtWeakness, p.ExtCardText,
			p.ExtAttack1, p.ExtAttack2, p.ExtAttack3, p.ExtAttack4,
		)
	}

	return s.sendInTx(ctx, b, "upsert products")
}

// GetProduct retrieves a product by id. Returns ErrNotFound if not exists.
func (s *CatalogStore) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `
		SELECT product_id, category_id, group_id, name, clean_name, url, image_url, image_count,
		       sub_type_name, modified_on, ext_card_type, ext_hp, ext_number, ext_rarity,
		       ext_resistance, ext_retreat_cost, ext_stage, ext_upc, ext_weakness, ext_card_text,
		       ext_attack1, ext_attack2, ext_attack3, ext_attack4
		FROM products
		WHERE product_id = $1
	`

	var p domain.Product
	var modifiedOn *time.Time
	err := s.pool.QueryRow(ctx, query, productID).Scan(
		&p.ProductID, &p.CategoryID, &p.GroupID, &p.Name, &p.CleanName, &p.URL, &p.ImageURL, &p.ImageCount,
		&p.SubTypeName, &modifiedOn, &p.ExtCardType, &p.ExtHP, &p.ExtNumber, &p.ExtRarity,
		&p.ExtResistance, &p.ExtRetreatCost, &p.ExtStage, &p.ExtUPC, &p.ExtWeakness, &p.ExtCardText,
		&p.ExtAttack1, &p.ExtAttack2, &p.ExtAttack3, &p.ExtAttack4,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if modifiedOn != nil {
		p.ModifiedOn = *modifiedOn
	}
	return &p, nil
}

// Count returns the number of catalog items.
func (s *CatalogStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// ListPage returns up to limit items ordered by product_id ASC, skipping offset.
func (s *CatalogStore) ListPage(ctx context.Context, offset, limit int) ([]domain.CatalogItem, error) {
	if offset < 0 || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT product_id, sub_type_name
		FROM products
		ORDER BY product_id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products page: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CatalogItem, 0, limit)
	for rows.Next() {
		var it domain.CatalogItem
		if err := rows.Scan(&it.ProductID, &it.SubTypeName); err != nil {
			return nil, fmt.Errorf("scan catalog item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog item rows: %w", err)
	}
	return items, nil
}

// sendInTx runs all queued statements in one transaction.
func (s *CatalogStore) sendInTx(ctx context.Context, b *pgx.Batch, op string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
