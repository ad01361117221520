package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tcg-price-trends/internal/storage"
)

func TestProgressStore_SetAndGet(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	today := time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)
	if _, err := store.GetProgress(ctx, today); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetProgress(ctx, &storage.RunProgress{Today: today, NextOffset: 500}); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	if err := store.SetProgress(ctx, &storage.RunProgress{Today: today, NextOffset: 1000}); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}

	// Lookup by a different time on the same day
	got, err := store.GetProgress(ctx, mkDate(2024, 3, 15))
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if got.NextOffset != 1000 {
		t.Errorf("NextOffset mismatch: got %d, want 1000", got.NextOffset)
	}

	if _, err := store.GetProgress(ctx, mkDate(2024, 3, 16)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected progress to be scoped to its day, got %v", err)
	}
}

func TestProgressStore_InvalidInput(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	for _, p := range []*storage.RunProgress{nil, {}, {Today: mkDate(2024, 1, 1), NextOffset: -1}} {
		if err := store.SetProgress(ctx, p); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %+v, got %v", p, err)
		}
	}
}
