// Package orchestrator drives a full trend run over the catalog.
// It coordinates: count → {fetch chunk → resolve windows → compute → upsert}* → done
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/observability"
	"tcg-price-trends/internal/storage"
	"tcg-price-trends/internal/trend"
)

// Default run parameters.
const (
	DefaultChunkSize  = 500
	DefaultChunkDelay = 500 * time.Millisecond
)

var (
	// ErrFatal marks failures that abort the whole run (catalog count,
	// unreachable store). Chunk failures never surface as ErrFatal.
	ErrFatal = errors.New("fatal")

	// ErrAlreadyRunning is returned when Run is called while a run is active.
	ErrAlreadyRunning = errors.New("run already in progress")
)

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle          State = "IDLE"
	StateCounting      State = "COUNTING"
	StateFetchingChunk State = "FETCHING_CHUNK"
	StateResolving     State = "RESOLVING"
	StateWriting       State = "WRITING"
	StateDone          State = "DONE"
)

// Stage names the chunk step that failed.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageResolve Stage = "resolve"
	StageWrite   Stage = "write"
)

// ChunkError records a skipped chunk.
type ChunkError struct {
	Offset int
	Stage  Stage
	Err    error
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("chunk at offset %d failed during %s: %v", e.Offset, e.Stage, e.Err)
}

func (e ChunkError) Unwrap() error {
	return e.Err
}

// RunRecorder persists the audit row of a finished run.
type RunRecorder interface {
	Insert(ctx context.Context, run *domain.TrendRun) error
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	Catalog storage.CatalogStore
	History storage.PriceHistoryStore
	Changes storage.PriceChangeStore

	// Optional stores
	Runs     RunRecorder           // audit row per run
	Progress storage.ProgressStore // chunk checkpoints, needed for Resume

	ChunkSize   int           // default 500
	ChunkDelay  time.Duration // pause between chunks, default 500ms; negative disables
	StartOffset int           // first catalog offset to process
	Resume      bool          // continue from today's saved progress if further ahead

	Now     func() time.Time // clock, default time.Now
	Logger  *log.Logger      // default log.Default()
	Metrics *observability.Metrics
}

// RunResult contains results from a trend run.
type RunResult struct {
	RunID             uuid.UUID
	Today             time.Time
	StartOffset       int
	TotalItems        int
	ChunksAttempted   int
	ChunksSkipped     int
	ItemsWritten      int
	ItemsWithoutPrice int
	ItemsRejected     int
	Errors            []ChunkError
	Status            domain.RunStatus
	Duration          time.Duration
}

// Orchestrator coordinates trend computation over the catalog in chunks.
type Orchestrator struct {
	catalog  storage.CatalogStore
	builder  *trend.Builder
	changes  storage.PriceChangeStore
	runs     RunRecorder
	progress storage.ProgressStore

	chunkSize   int
	chunkDelay  time.Duration
	startOffset int
	resume      bool

	now     func() time.Time
	logger  *log.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	state   State
	running bool
	last    *RunResult
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	delay := opts.ChunkDelay
	if delay == 0 {
		delay = DefaultChunkDelay
	}
	if delay < 0 {
		delay = 0
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	startOffset := opts.StartOffset
	if startOffset < 0 {
		startOffset = 0
	}

	return &Orchestrator{
		catalog:     opts.Catalog,
		builder:     trend.NewBuilder(opts.History),
		changes:     opts.Changes,
		runs:        opts.Runs,
		progress:    opts.Progress,
		chunkSize:   chunkSize,
		chunkDelay:  delay,
		startOffset: startOffset,
		resume:      opts.Resume,
		now:         now,
		logger:      logger,
		metrics:     opts.Metrics,
		state:       StateIdle,
	}
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastResult returns the result of the most recent finished run, or nil.
func (o *Orchestrator) LastResult() *RunResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil
	}
	r := *o.last
	r.Errors = append([]ChunkError(nil), o.last.Errors...)
	return &r
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes one trend run for today's date.
// Phases:
//  1. Count catalog items (failure is fatal)
//  2. For each chunk: fetch items, resolve windows, compute records, upsert
//  3. Record the run
//
// Chunk failures are logged, recorded in RunResult.Errors and skipped.
// A cancelled context stops the run between chunks; the partial result is
// returned together with the context error.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	startedAt := o.now()
	result := &RunResult{
		RunID:  uuid.New(),
		Today:  domain.DateOf(startedAt),
		Status: domain.RunStatusCompleted,
	}

	err := o.run(ctx, result, startedAt)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result.Status = domain.RunStatusCancelled
	default:
		result.Status = domain.RunStatusFailed
	}

	finishedAt := o.now()
	result.Duration = finishedAt.Sub(startedAt)
	o.setState(StateDone)
	o.finish(result, startedAt, finishedAt, err)

	if err != nil {
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, result *RunResult, startedAt time.Time) error {
	o.setState(StateCounting)
	total, err := o.catalog.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: count catalog items: %w", ErrFatal, err)
	}
	result.TotalItems = total

	offset := o.resolveStartOffset(ctx, result.Today)
	result.StartOffset = offset
	o.log("Run %s for %s: %d items, chunk size %d, starting at offset %d",
		result.RunID, result.Today.Format("2006-01-02"), total, o.chunkSize, offset)

	for offset < total {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunkStart := time.Now()
		n, stats, cerr := o.processChunk(ctx, offset, result.Today, startedAt)
		if cerr == nil && n == 0 {
			// Catalog shrank after counting.
			break
		}
		result.ChunksAttempted++
		if cerr != nil {
			result.ChunksSkipped++
			result.Errors = append(result.Errors, *cerr)
			o.metrics.RecordChunk("skipped")
			o.log("WARN: skipping chunk: %v", cerr)
			if n == 0 {
				n = o.chunkSize
			}
		} else {
			result.ItemsWritten += stats.written
			result.ItemsWithoutPrice += stats.withoutPrice
			result.ItemsRejected += stats.rejected
			o.metrics.RecordChunk("written")
			o.metrics.RecordItems(stats.written, stats.withoutPrice, stats.rejected)
		}

		offset += n
		o.saveProgress(ctx, result.Today, offset)
		o.metrics.SetProgress(offset)

		elapsed := time.Since(chunkStart)
		rate := 0.0
		if elapsed > 0 {
			rate = float64(n) / elapsed.Seconds()
		}
		o.log("Chunk done: offset=%d items=%d written=%d elapsed=%s rate=%.1f items/s progress=%d/%d",
			offset-n, n, stats.written, elapsed.Round(time.Millisecond), rate, min(offset, total), total)

		if offset < total {
			if err := o.sleep(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

type chunkStats struct {
	written      int
	withoutPrice int
	rejected     int
}

// processChunk handles one chunk and returns the number of catalog items it
// covered. On error nothing from the chunk has been committed.
func (o *Orchestrator) processChunk(ctx context.Context, offset int, today, now time.Time) (int, chunkStats, *ChunkError) {
	var stats chunkStats

	o.setState(StateFetchingChunk)
	stageStart := time.Now()
	items, err := o.catalog.ListPage(ctx, offset, o.chunkSize)
	o.metrics.RecordStage(string(StageFetch), time.Since(stageStart).Seconds())
	if err != nil {
		return 0, stats, &ChunkError{Offset: offset, Stage: StageFetch, Err: err}
	}
	if len(items) == 0 {
		return 0, stats, nil
	}

	o.setState(StateResolving)
	stageStart = time.Now()
	snapshots, err := o.builder.Build(ctx, items, today)
	o.metrics.RecordStage(string(StageResolve), time.Since(stageStart).Seconds())
	if err != nil {
		return len(items), stats, &ChunkError{Offset: offset, Stage: StageResolve, Err: err}
	}

	ids := make([]int64, 0, len(snapshots))
	for pid := range snapshots {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]*domain.PriceChange, 0, len(ids))
	for _, pid := range ids {
		rec, err := trend.ComputeRecord(snapshots[pid], now)
		switch {
		case err == nil:
			records = append(records, rec)
		case errors.Is(err, trend.ErrNoCurrentPrice):
			stats.withoutPrice++
		default:
			stats.rejected++
			o.log("WARN: excluding product %d: %v", pid, err)
		}
	}
	stats.withoutPrice += countUnique(items) - len(snapshots)

	o.setState(StateWriting)
	if len(records) > 0 {
		stageStart = time.Now()
		err := o.changes.UpsertBulk(ctx, records)
		o.metrics.RecordStage(string(StageWrite), time.Since(stageStart).Seconds())
		if err != nil {
			return len(items), chunkStats{}, &ChunkError{Offset: offset, Stage: StageWrite, Err: err}
		}
	}
	stats.written = len(records)

	return len(items), stats, nil
}

// resolveStartOffset returns the configured start offset, or today's saved
// progress when resuming and it is further ahead.
func (o *Orchestrator) resolveStartOffset(ctx context.Context, today time.Time) int {
	offset := o.startOffset
	if !o.resume || o.progress == nil {
		return offset
	}

	p, err := o.progress.GetProgress(ctx, today)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			o.log("WARN: failed to load progress, starting at offset %d: %v", offset, err)
		}
		return offset
	}
	if p.NextOffset > offset {
		o.log("Resuming from saved offset %d", p.NextOffset)
		offset = p.NextOffset
	}
	return offset
}

func (o *Orchestrator) saveProgress(ctx context.Context, today time.Time, next int) {
	if o.progress == nil {
		return
	}
	err := o.progress.SetProgress(ctx, &storage.RunProgress{
		Today:      today,
		NextOffset: next,
		UpdatedAt:  o.now(),
	})
	if err != nil {
		o.log("WARN: failed to save progress at offset %d: %v", next, err)
	}
}

// sleep waits for the inter-chunk delay or until ctx is done.
func (o *Orchestrator) sleep(ctx context.Context) error {
	if o.chunkDelay <= 0 {
		return nil
	}
	t := time.NewTimer(o.chunkDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// finish logs the summary, records metrics and persists the audit row.
func (o *Orchestrator) finish(result *RunResult, startedAt, finishedAt time.Time, runErr error) {
	o.log("Run %s %s in %.2f minutes: %d items, %d chunks (%d skipped), %d written, %d without price, %d rejected",
		result.RunID, result.Status, result.Duration.Minutes(), result.TotalItems,
		result.ChunksAttempted, result.ChunksSkipped, result.ItemsWritten,
		result.ItemsWithoutPrice, result.ItemsRejected)

	o.metrics.RecordTrendRun(string(result.Status), result.Duration.Seconds(), finishedAt.Unix())

	o.mu.Lock()
	last := *result
	last.Errors = append([]ChunkError(nil), result.Errors...)
	o.last = &last
	o.mu.Unlock()

	if o.runs == nil {
		return
	}
	run := &domain.TrendRun{
		RunID:           result.RunID,
		Today:           result.Today,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
		TotalItems:      result.TotalItems,
		ChunksAttempted: result.ChunksAttempted,
		ChunksSkipped:   result.ChunksSkipped,
		ItemsWritten:    result.ItemsWritten,
		Status:          result.Status,
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}
	// The run context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.runs.Insert(ctx, run); err != nil {
		o.log("WARN: failed to record run %s: %v", result.RunID, err)
	}
}

// countUnique returns the number of distinct product ids in items.
func countUnique(items []domain.CatalogItem) int {
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		seen[it.ProductID] = struct{}{}
	}
	return len(seen)
}

// log prints a message with the orchestrator prefix.
func (o *Orchestrator) log(format string, args ...interface{}) {
	o.logger.Printf("[orchestrator] "+format, args...)
}
