package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
)

func TestRunStore_InsertAndLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRunStore(pool)

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	started := time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)
	first := &domain.TrendRun{
		RunID:           uuid.New(),
		Today:           day(t, "2024-03-14"),
		StartedAt:       started.Add(-24 * time.Hour),
		FinishedAt:      started.Add(-23 * time.Hour),
		TotalItems:      1200,
		ChunksAttempted: 3,
		ItemsWritten:    1100,
		Status:          domain.RunStatusCompleted,
	}
	second := &domain.TrendRun{
		RunID:           uuid.New(),
		Today:           day(t, "2024-03-15"),
		StartedAt:       started,
		FinishedAt:      started.Add(time.Minute),
		TotalItems:      1200,
		ChunksAttempted: 3,
		ChunksSkipped:   1,
		ItemsWritten:    700,
		Status:          domain.RunStatusCompleted,
		Error:           ptr("chunk at offset 500: write: timeout"),
	}
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	got, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, got.RunID)
	assert.Equal(t, second.Today, got.Today)
	assert.Equal(t, 1, got.ChunksSkipped)
	assert.Equal(t, 700, got.ItemsWritten)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, *second.Error, *got.Error)

	assert.ErrorIs(t, store.Insert(ctx, first), storage.ErrDuplicateKey)
}
