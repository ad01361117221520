package storage

import (
	"context"
	"time"

	"tcg-price-trends/internal/domain"
)

// CatalogStore provides access to groups and products storage.
type CatalogStore interface {
	// UpsertGroups inserts or refreshes groups keyed by group_id.
	UpsertGroups(ctx context.Context, groups []*domain.Group) error

	// UpsertProducts inserts or refreshes products keyed by product_id.
	UpsertProducts(ctx context.Context, products []*domain.Product) error

	// GetProduct retrieves a product by id. Returns ErrNotFound if not exists.
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// Count returns the number of catalog items.
	Count(ctx context.Context) (int, error)

	// ListPage returns up to limit items ordered by product_id ASC, skipping offset.
	ListPage(ctx context.Context, offset, limit int) ([]domain.CatalogItem, error)
}

// PriceHistoryStore provides access to price_history storage.
// Read methods are batched: they take the ids of a whole chunk and return at
// most one observation per (product_id, sub_type_name), considering only rows
// with a non-null market price. Same-date ties resolve to the highest id.
type PriceHistoryStore interface {
	// InsertBulk appends observations atomically and returns the number stored.
	// The assigned ingestion sequence is written back to each observation's ID.
	InsertBulk(ctx context.Context, obs []*domain.PriceObservation) (int, error)

	// Latest returns the most recent observation dated on or before asOf.
	Latest(ctx context.Context, productIDs []int64, asOf time.Time) ([]*domain.PriceObservation, error)

	// Nearest returns the observation dated on or before target that is
	// closest to target.
	Nearest(ctx context.Context, productIDs []int64, target time.Time) ([]*domain.PriceObservation, error)

	// Earliest returns the oldest observation.
	Earliest(ctx context.Context, productIDs []int64) ([]*domain.PriceObservation, error)
}

// PriceChangeStore provides access to price_change storage.
type PriceChangeStore interface {
	// UpsertBulk inserts or replaces all records keyed by product_id in one
	// transaction. Either every record commits or none does.
	UpsertBulk(ctx context.Context, records []*domain.PriceChange) error

	// GetByProductID retrieves a record. Returns ErrNotFound if not exists.
	GetByProductID(ctx context.Context, productID int64) (*domain.PriceChange, error)

	// ListByChange returns records ordered by the window's percent change,
	// skipping records where it is null. Ties order by product_id ASC.
	ListByChange(ctx context.Context, window domain.Window, ascending bool, limit int) ([]*domain.PriceChange, error)
}

// RunStore provides access to price_change_runs storage.
type RunStore interface {
	// Insert adds a run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.TrendRun) error

	// Latest returns the most recently started run. Returns ErrNotFound if none.
	Latest(ctx context.Context) (*domain.TrendRun, error)
}
