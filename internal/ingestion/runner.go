package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"tcg-price-trends/internal/domain"
	"tcg-price-trends/internal/observability"
	"tcg-price-trends/internal/storage"
)

// Runner performs the daily catalog and price ingestion.
// Flow: fetch groups → upsert groups → per group {fetch CSV → upsert products → append prices}
type Runner struct {
	source     CatalogSource
	catalog    storage.CatalogStore
	history    storage.PriceHistoryStore
	mirror     storage.PriceHistoryStore
	categoryID int
	now        func() time.Time
	logger     *log.Logger
	metrics    *observability.Metrics
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source     CatalogSource
	Catalog    storage.CatalogStore
	History    storage.PriceHistoryStore
	Mirror     storage.PriceHistoryStore // Optional: receives a copy of every stored observation
	CategoryID int                       // Default: 3 (Pokémon)
	Now        func() time.Time
	Logger     *log.Logger
	Metrics    *observability.Metrics
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	categoryID := opts.CategoryID
	if categoryID == 0 {
		categoryID = domain.CategoryPokemon
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:     opts.Source,
		catalog:    opts.Catalog,
		history:    opts.History,
		mirror:     opts.Mirror,
		categoryID: categoryID,
		now:        now,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// GroupError records a group that could not be ingested.
type GroupError struct {
	GroupID int64
	Err     error
}

func (e GroupError) Error() string {
	return fmt.Sprintf("group %d: %v", e.GroupID, e.Err)
}

func (e GroupError) Unwrap() error {
	return e.Err
}

// RunResult contains results from one ingestion run.
type RunResult struct {
	Date           time.Time
	Groups         int
	GroupsFailed   int
	Products       int
	PricesStored   int
	RowsSkipped    int
	MirrorFailures int
	Errors         []GroupError
	Duration       time.Duration
}

// Run ingests today's feed. A failure to fetch or store the group list is
// returned; failures of single groups are logged and recorded in the result.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	start := r.now()
	result := &RunResult{Date: domain.DateOf(start)}
	r.log("Starting daily ingestion for category %d", r.categoryID)

	groups, err := r.source.FetchGroups(ctx, r.categoryID)
	if err != nil {
		return nil, fmt.Errorf("fetch groups: %w", err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("fetch groups: no groups returned for category %d", r.categoryID)
	}
	if err := r.catalog.UpsertGroups(ctx, groups); err != nil {
		return nil, fmt.Errorf("upsert groups: %w", err)
	}
	result.Groups = len(groups)
	r.log("Updated %d groups", len(groups))

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		r.log("Processing group %d/%d: %s (%d)", i+1, len(groups), g.Name, g.GroupID)
		products, stored, skipped, err := r.ingestGroup(ctx, g, result)
		result.RowsSkipped += skipped
		if err != nil {
			result.GroupsFailed++
			result.Errors = append(result.Errors, GroupError{GroupID: g.GroupID, Err: err})
			r.metrics.RecordGroupIngested("failed", 0, skipped)
			r.log("ERROR: group %d: %v", g.GroupID, err)
			continue
		}
		result.Products += products
		result.PricesStored += stored
		r.metrics.RecordGroupIngested("ok", stored, skipped)
	}

	result.Duration = r.now().Sub(start)
	r.log("Daily ingestion completed in %.2f minutes: %d groups (%d failed), %d products, %d prices, %d rows skipped",
		result.Duration.Minutes(), result.Groups, result.GroupsFailed, result.Products,
		result.PricesStored, result.RowsSkipped)
	if result.GroupsFailed < result.Groups {
		r.metrics.RecordIngestionSuccess(r.now().Unix())
	}

	return result, nil
}

// ingestGroup stores one group's products and price observations.
func (r *Runner) ingestGroup(ctx context.Context, g *domain.Group, result *RunResult) (products, stored, skipped int, err error) {
	parsed, err := r.source.FetchProducts(ctx, r.categoryID, g.GroupID)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, perr := range parsed.Errors {
		r.log("WARN: group %d: skipping row: %v", g.GroupID, perr)
	}
	if len(parsed.Rows) == 0 {
		return 0, 0, parsed.Skipped, nil
	}

	rows := make([]*domain.Product, 0, len(parsed.Rows))
	obs := make([]*domain.PriceObservation, 0, len(parsed.Rows))
	for i := range parsed.Rows {
		row := &parsed.Rows[i]
		p := row.Product
		rows = append(rows, &p)
		if o := row.Observation(result.Date); o != nil {
			obs = append(obs, o)
		}
	}

	if err := r.catalog.UpsertProducts(ctx, rows); err != nil {
		return 0, 0, parsed.Skipped, fmt.Errorf("upsert products: %w", err)
	}
	if len(obs) == 0 {
		return len(rows), 0, parsed.Skipped, nil
	}

	n, err := r.history.InsertBulk(ctx, obs)
	if err != nil {
		return len(rows), 0, parsed.Skipped, fmt.Errorf("insert prices: %w", err)
	}

	if r.mirror != nil {
		// Observation IDs were assigned by the primary store.
		if _, err := r.mirror.InsertBulk(ctx, obs); err != nil {
			result.MirrorFailures++
			r.log("WARN: group %d: mirror insert failed: %v", g.GroupID, err)
		}
	}

	r.log("Updated %d products and inserted %d price records for group %d", len(rows), n, g.GroupID)
	return len(rows), n, parsed.Skipped, nil
}

// log prints a message with the ingestion prefix.
func (r *Runner) log(format string, args ...interface{}) {
	r.logger.Printf("[ingestion] "+format, args...)
}
