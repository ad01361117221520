package orchestrator

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/storage"
	"tcg-price-trends/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)

// MockCatalogStore is a mock implementation of storage.CatalogStore for testing
type MockCatalogStore struct {
	mock.Mock
}

func (m *MockCatalogStore) UpsertGroups(ctx context.Context, groups []*domain.Group) error {
	return m.Called(ctx, groups).Error(0)
}

func (m *MockCatalogStore) UpsertProducts(ctx context.Context, products []*domain.Product) error {
	return m.Called(ctx, products).Error(0)
}

func (m *MockCatalogStore) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockCatalogStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalogStore) ListPage(ctx context.Context, offset, limit int) ([]domain.CatalogItem, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CatalogItem), args.Error(1)
}

// MockPriceChangeStore wraps the memory store and lets tests fail chosen writes.
type MockPriceChangeStore struct {
	mock.Mock
	*memory.PriceChangeStore
}

func (m *MockPriceChangeStore) UpsertBulk(ctx context.Context, records []*domain.PriceChange) error {
	if err := m.Called(ctx, records).Error(0); err != nil {
		return err
	}
	return m.PriceChangeStore.UpsertBulk(ctx, records)
}

type testStores struct {
	catalog  *memory.CatalogStore
	history  *memory.PriceHistoryStore
	changes  *memory.PriceChangeStore
	runs     *memory.RunStore
	progress *memory.ProgressStore
}

func fp(v float64) *float64 { return &v }

// createTestStores seeds n products (ids 1..n). Each has a price of 10 thirty
// days ago and 15 today.
func createTestStores(t *testing.T, n int) *testStores {
	t.Helper()
	ctx := context.Background()

	s := &testStores{
		catalog:  memory.NewCatalogStore(),
		history:  memory.NewPriceHistoryStore(),
		changes:  memory.NewPriceChangeStore(),
		runs:     memory.NewRunStore(),
		progress: memory.NewProgressStore(),
	}

	require.NoError(t, s.catalog.UpsertGroups(ctx, []*domain.Group{{GroupID: 100, Name: "Base Set", CategoryID: domain.CategoryPokemon}}))

	var products []*domain.Product
	var obs []*domain.PriceObservation
	today := domain.DateOf(fixedNow)
	for i := 1; i <= n; i++ {
		pid := int64(i)
		products = append(products, &domain.Product{ProductID: pid, GroupID: 100, Name: "Card", SubTypeName: "Normal"})
		obs = append(obs,
			&domain.PriceObservation{ProductID: pid, GroupID: 100, SubTypeName: "Normal", Date: today.AddDate(0, 0, -30), MarketPrice: fp(10)},
			&domain.PriceObservation{ProductID: pid, GroupID: 100, SubTypeName: "Normal", Date: today, MarketPrice: fp(15)},
		)
	}
	require.NoError(t, s.catalog.UpsertProducts(ctx, products))
	_, err := s.history.InsertBulk(ctx, obs)
	require.NoError(t, err)

	return s
}

func (s *testStores) options() Options {
	return Options{
		Catalog:    s.catalog,
		History:    s.history,
		Changes:    s.changes,
		Runs:       s.runs,
		Progress:   s.progress,
		ChunkSize:  2,
		ChunkDelay: -1,
		Now:        func() time.Time { return fixedNow },
		Logger:     log.New(io.Discard, "", 0),
	}
}

func items(ids ...int64) []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.CatalogItem{ProductID: id, SubTypeName: "Normal"})
	}
	return out
}

func TestRun_ComputesEveryItem(t *testing.T) {
	ctx := context.Background()
	s := createTestStores(t, 5)
	o := New(s.options())

	assert.Equal(t, StateIdle, o.State())

	result, err := o.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateDone, o.State())
	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.Equal(t, domain.DateOf(fixedNow), result.Today)
	assert.Equal(t, 5, result.TotalItems)
	assert.Equal(t, 3, result.ChunksAttempted)
	assert.Equal(t, 0, result.ChunksSkipped)
	assert.Equal(t, 5, result.ItemsWritten)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 5, s.changes.Count())

	rec, err := s.changes.GetByProductID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 15.0, rec.CurrentPrice)
	require.NotNil(t, rec.Window(domain.Window30D).ChangePct)
	assert.Equal(t, 50.0, *rec.Window(domain.Window30D).ChangePct)
	assert.Equal(t, 5.0, *rec.Window(domain.Window30D).ChangeDollar)
	assert.Equal(t, fixedNow, rec.LastUpdated)

	last := o.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, result.RunID, last.RunID)
}

func TestRun_IdempotentWithFixedClock(t *testing.T) {
	ctx := context.Background()
	s := createTestStores(t, 4)
	o := New(s.options())

	_, err := o.Run(ctx)
	require.NoError(t, err)
	first, err := s.changes.ListByChange(ctx, domain.Window30D, false, 100)
	require.NoError(t, err)

	_, err = o.Run(ctx)
	require.NoError(t, err)
	second, err := s.changes.ListByChange(ctx, domain.Window30D, false, 100)
	require.NoError(t, err)

	assert.Equal(t, 4, s.changes.Count())
	assert.Equal(t, first, second)
}

func TestRun_CountFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	s := createTestStores(t, 0)

	catalog := new(MockCatalogStore)
	catalog.On("Count", mock.Anything).Return(0, errors.New("connection refused"))

	opts := s.options()
	opts.Catalog = catalog
	o := New(opts)

	result, err := o.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFatal))
	require.NotNil(t, result)
	assert.Equal(t, domain.RunStatusFailed, result.Status)
	assert.Equal(t, 0, result.ChunksAttempted)

	run, err := s.runs.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "connection refused")

	catalog.AssertNotCalled(t, "ListPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_FetchFailureSkipsOnlyThatChunk(t *testing.T) {
	ctx := context.Background()
	s := createTestStores(t, 6)

	catalog := new(MockCatalogStore)
	catalog.On("Count", mock.Anything).Return(6, nil)
	catalog.On("ListPage", mock.Anything, 0, 2).Return(items(1, 2), nil)
	catalog.On("ListPage", mock.Anything, 2, 2).Return(nil, errors.New("read timeout"))
	catalog.On("ListPage", mock.Anything, 4, 2).Return(items(5, 6), nil)

	opts := s.options()
	opts.Catalog = catalog
	result, err := New(opts).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.ChunksAttempted)
	assert.Equal(t, 1, result.ChunksSkipped)
	assert.Equal(t, 4, result.ItemsWritten)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Offset)
	assert.Equal(t, StageFetch, result.Errors[0].Stage)
	assert.ErrorContains(t, result.Errors[0], "read timeout")

	_, err = s.changes.GetByProductID(ctx, 3)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = s.changes.GetByProductID(ctx, 5)
	assert.NoError(t, err)

	catalog.AssertExpectations(t)
}

func TestRun_WriteFailureSkipsOnlyThatChunk(t *testing.T) {
	ctx := context.Background()
	s := createTestStores(t, 5)

	changes := &MockPriceChangeStore{PriceChangeStore: s.changes}
	changes.On("UpsertBulk", mock.Anything, mock.Anything).Return(nil).Once()
	changes.On("UpsertBulk", mock.Anything, mock.Anything).Return(errors.New("deadlock detected")).Once()
	changes.On("UpsertBulk", mock.Anything, mock.Anything).Return(nil).Once()

	opts := s.options()
	opts.Changes = changes
	result, err := New(opts).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.ChunksAttempted)
	assert.Equal(t, 1, result.ChunksSkipped)
	assert.Equal(t, 3, result.ItemsWritten)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Offset)
	assert.Equal(t, StageWrite, result.Errors[0].Stage)

	for _, pid := range []int64{1, 2, 5} {
		_, err := s.changes.GetByProductID(ctx, pid)
		assert.NoError(t, err, "product %d", pid)
	}
	for _, pid := range []int64{3, 4} {
		_, err := s.changes.GetByProductID(ctx, pid)
		assert.True(t, errors.Is(err, storage.ErrNotFound), "product %d", pid)
	}

	changes.AssertNumberOfCalls(t, "UpsertBulk", 3)
}

func TestRun_CountsItemsWithoutPriceAndRejected(t *testing.T) {
	ctx := context.Background()
	s := createTestStores(t, 2)

	// 3 has no history at all, 4 has only a future price, 5 has a negative price.
	require.NoError(t, s.catalog.UpsertProducts(ctx, []*domain.Product{
		{ProductID: 3, GroupID: 100, SubTypeName: "Normal"},
		{ProductID: 4, GroupID: 100, SubTypeName: "Normal"},
		{ProductID: 5, GroupID: 100, SubTypeName: "Normal"},
	}))
	_, err := s.history.InsertBulk(ctx, []*domain.PriceObservation{
		{ProductID: 4, SubTypeName: "Normal", Date: fixedNow.AddDate(0, 0, 3), MarketPrice: fp(9)},
		{ProductID: 5, SubTypeName: "Normal", Date: fixedNow, MarketPrice: fp(-1)},
	})
	require.NoError(t, err)

	opts := s.options()
	opts.ChunkSize = 10
	result, err := New(opts).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalItems)
	assert.Equal(t, 2, result.ItemsWritten)
	assert.Equal(t, 2, result.ItemsWithoutPrice)
	assert.Equal(t, 1, result.ItemsRejected)
	assert.Equal(t, 0, result.ChunksSkipped)
	assert.Equal(t, 2, s.changes.Count())
}

func TestRun_ResumesFromSavedProgress(t *testing.T) {
	ctx := context.Background()
	s := createTestStores(t, 6)

	require.NoError(t, s.progress.SetProgress(ctx, &storage.RunProgress{
		Today:      fixedNow,
		NextOffset: 4,
	}))

	opts := s.options()
	opts.Resume = true
	result, err := New(opts).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, result.StartOffset)
	assert.Equal(t, 1, result.ChunksAttempted)
	assert.Equal(t, 2, result.ItemsWritten)

	_, err = s.changes.GetByProductID(ctx, 1)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = s.changes.GetByProductID(ctx, 6)
	assert.NoError(t, err)

	p, err := s.progress.GetProgress(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 6, p.NextOffset)
}

func TestRun_StartOffsetWithoutResume(t *testing.T) {
	ctx := context.Background()
	s := createTestStores(t, 5)

	require.NoError(t, s.progress.SetProgress(ctx, &storage.RunProgress{Today: fixedNow, NextOffset: 4}))

	opts := s.options()
	opts.StartOffset = 2
	result, err := New(opts).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.StartOffset)
	assert.Equal(t, 3, result.ItemsWritten)
}

func TestRun_CancelStopsBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := createTestStores(t, 6)

	changes := &MockPriceChangeStore{PriceChangeStore: s.changes}
	changes.On("UpsertBulk", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) { cancel() })

	opts := s.options()
	opts.Changes = changes
	opts.ChunkDelay = time.Hour
	result, err := New(opts).Run(ctx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result)
	assert.Equal(t, domain.RunStatusCancelled, result.Status)
	assert.Equal(t, 1, result.ChunksAttempted)
	assert.Equal(t, 2, result.ItemsWritten)
}

func TestRun_RecordsAuditRow(t *testing.T) {
	ctx := context.Background()
	s := createTestStores(t, 3)

	result, err := New(s.options()).Run(ctx)
	require.NoError(t, err)

	run, err := s.runs.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, run.RunID)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.TotalItems)
	assert.Equal(t, 2, run.ChunksAttempted)
	assert.Equal(t, 3, run.ItemsWritten)
	assert.Nil(t, run.Error)
}

func TestNew_Defaults(t *testing.T) {
	o := New(Options{})
	assert.Equal(t, DefaultChunkSize, o.chunkSize)
	assert.Equal(t, DefaultChunkDelay, o.chunkDelay)
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.now)
	assert.Nil(t, o.LastResult())
}

func TestChunkError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(ChunkError{Offset: 500, Stage: StageResolve, Err: cause})
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "chunk at offset 500 failed during resolve: boom", err.Error())
}
