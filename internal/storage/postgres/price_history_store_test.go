package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

func seedHistory(t *testing.T, ctx context.Context, store *PriceHistoryStore) {
	t.Helper()

	obs := []*domain.PriceObservation{
		{ProductID: 1, GroupID: 9, SubTypeName: "Normal", Date: day(t, "2024-01-01"), MarketPrice: ptr(10.00), LowPrice: ptr(8.50)},
		{ProductID: 1, GroupID: 9, SubTypeName: "Normal", Date: day(t, "2024-01-10"), MarketPrice: ptr(12.00)},
		{ProductID: 1, GroupID: 9, SubTypeName: "Normal", Date: day(t, "2024-03-01"), MarketPrice: ptr(15.00)},
		{ProductID: 1, GroupID: 9, SubTypeName: "Normal", Date: day(t, "2024-03-05"), LowPrice: ptr(14.00)},
		{ProductID: 1, GroupID: 9, SubTypeName: "Holofoil", Date: day(t, "2024-02-01"), MarketPrice: ptr(40.00)},
		{ProductID: 2, GroupID: 9, SubTypeName: "", Date: day(t, "2024-02-10"), MarketPrice: ptr(3.00)},
		{ProductID: 2, GroupID: 9, SubTypeName: "", Date: day(t, "2024-02-10"), MarketPrice: ptr(3.50)},
		{ProductID: 3, GroupID: 9, SubTypeName: "", Date: day(t, "2024-02-10"), MarketPrice: ptr(99.00)},
	}
	n, err := store.InsertBulk(ctx, obs)
	require.NoError(t, err)
	require.Equal(t, len(obs), n)
	for _, o := range obs {
		require.NotZero(t, o.ID, "id must be written back")
	}
}

func byVariant(obs []*domain.PriceObservation, productID int64, variant string) *domain.PriceObservation {
	for _, o := range obs {
		if o.ProductID == productID && o.SubTypeName == variant {
			return o
		}
	}
	return nil
}

func TestPriceHistoryStore_Latest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceHistoryStore(pool)
	seedHistory(t, ctx, store)

	got, err := store.Latest(ctx, []int64{1, 2}, day(t, "2024-03-15"))
	require.NoError(t, err)
	require.Len(t, got, 3)

	normal := byVariant(got, 1, "Normal")
	require.NotNil(t, normal)
	assert.Equal(t, day(t, "2024-03-01"), normal.Date)
	assert.InDelta(t, 15.00, *normal.MarketPrice, 0.001)

	// Same date: highest id wins
	p2 := byVariant(got, 2, "")
	require.NotNil(t, p2)
	assert.InDelta(t, 3.50, *p2.MarketPrice, 0.001)

	assert.Nil(t, byVariant(got, 3, ""), "product 3 was not requested")
}

func TestPriceHistoryStore_NearestNeverAfterTarget(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceHistoryStore(pool)
	seedHistory(t, ctx, store)

	target := day(t, "2024-02-14")
	got, err := store.Nearest(ctx, []int64{1}, target)
	require.NoError(t, err)

	normal := byVariant(got, 1, "Normal")
	require.NotNil(t, normal)
	assert.Equal(t, day(t, "2024-01-10"), normal.Date)
	assert.InDelta(t, 12.00, *normal.MarketPrice, 0.001)

	for _, o := range got {
		assert.False(t, o.Date.After(target), "observation %d is after target", o.ID)
	}
}

func TestPriceHistoryStore_Earliest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceHistoryStore(pool)
	seedHistory(t, ctx, store)

	got, err := store.Earliest(ctx, []int64{1})
	require.NoError(t, err)
	require.Len(t, got, 2)

	normal := byVariant(got, 1, "Normal")
	require.NotNil(t, normal)
	assert.Equal(t, day(t, "2024-01-01"), normal.Date)
	assert.InDelta(t, 8.50, *normal.LowPrice, 0.001)
}

func TestPriceHistoryStore_Series(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceHistoryStore(pool)
	seedHistory(t, ctx, store)

	series, err := store.GetSeries(ctx, 1, "Normal")
	require.NoError(t, err)
	require.Len(t, series, 4)
	assert.Nil(t, series[3].MarketPrice)
	assert.Equal(t, domain.PeriodDaily, series[0].PeriodType)
}

func TestPriceHistoryStore_InsertRejectsInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewPriceHistoryStore(pool).InsertBulk(context.Background(), []*domain.PriceObservation{{ProductID: 1}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
