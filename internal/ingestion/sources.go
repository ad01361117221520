package ingestion

import (
	"context"

	"tcg-price-trends/internal/domain"
)

// CatalogSource provides the daily catalog and price feed.
type CatalogSource interface {
	// FetchGroups returns every group (card set) of a category.
	FetchGroups(ctx context.Context, categoryID int) ([]*domain.Group, error)

	// FetchProducts returns the parsed product rows of one group.
	// Malformed rows are skipped and counted in ParseResult.Skipped.
	FetchProducts(ctx context.Context, categoryID int, groupID int64) (*ParseResult, error)
}
