package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

func TestCatalogStore_UpsertAndGetProduct(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCatalogStore(pool)

	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertGroups(ctx, []*domain.Group{
		{GroupID: 3170, Name: "Paldea Evolved", CategoryID: domain.CategoryPokemon, ModifiedOn: modified},
	}))

	p := &domain.Product{
		ProductID:   500001,
		CategoryID:  domain.CategoryPokemon,
		GroupID:     3170,
		Name:        "Charizard ex",
		CleanName:   "Charizard ex",
		URL:         "https://example.test/500001",
		ImageCount:  1,
		SubTypeName: "Holofoil",
		ModifiedOn:  modified,
		ExtRarity:   "Double Rare",
		ExtHP:       "330",
	}
	require.NoError(t, store.UpsertProducts(ctx, []*domain.Product{p}))

	got, err := store.GetProduct(ctx, 500001)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.SubTypeName, got.SubTypeName)
	assert.Equal(t, p.ExtRarity, got.ExtRarity)
	assert.True(t, modified.Equal(got.ModifiedOn))

	// Upsert refreshes in place
	p.Name = "Charizard ex (Alt)"
	require.NoError(t, store.UpsertProducts(ctx, []*domain.Product{p}))

	got, err = store.GetProduct(ctx, 500001)
	require.NoError(t, err)
	assert.Equal(t, "Charizard ex (Alt)", got.Name)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCatalogStore_GetProductNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewCatalogStore(pool).GetProduct(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCatalogStore_ListPage(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCatalogStore(pool)

	var products []*domain.Product
	for _, id := range []int64{30, 10, 50, 20, 40} {
		products = append(products, &domain.Product{ProductID: id, GroupID: 1, Name: "card", SubTypeName: "Normal"})
	}
	require.NoError(t, store.UpsertProducts(ctx, products))

	page, err := store.ListPage(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(10), page[0].ProductID)
	assert.Equal(t, int64(20), page[1].ProductID)
	assert.Equal(t, "Normal", page[0].SubTypeName)

	page, err = store.ListPage(ctx, 4, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(50), page[0].ProductID)

	_, err = store.ListPage(ctx, -1, 2)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
