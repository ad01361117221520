// Package app wires configuration into concrete stores for the commands.
package app

import (
	"context"
	"fmt"
	"log"

	"tcg-price-trends/internal/config"
	"tcg-price-trends/internal/observability"
	"tcg-price-trends/internal/orchestrator"
	"tcg-price-trends/internal/storage"
	chstore "tcg-price-trends/internal/storage/clickhouse"
	"tcg-price-trends/internal/storage/memory"
	"tcg-price-trends/internal/storage/migrations"
	pgstore "tcg-price-trends/internal/storage/postgres"
)

// Stores holds every store a command may need.
type Stores struct {
	Catalog  storage.CatalogStore
	Ledger   storage.PriceHistoryStore // primary history, written by ingestion
	History  storage.PriceHistoryStore // history read by the trend engine
	Mirror   storage.PriceHistoryStore // ClickHouse copy, nil when not configured
	Changes  storage.PriceChangeStore
	Runs     storage.RunStore
	Progress storage.ProgressStore

	// DB is the Postgres pool, nil for in-memory stores.
	DB *pgstore.Pool
}

// OpenOptions controls how stores are opened.
type OpenOptions struct {
	UseMemory      bool
	SkipMigrations bool
	Logger         *log.Logger
	Metrics        *observability.Metrics
}

// Open creates stores for cfg. Connection and migration failures wrap
// orchestrator.ErrFatal. The returned cleanup closes all connections.
func Open(ctx context.Context, cfg *config.Config, opts OpenOptions) (*Stores, func(), error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	if opts.UseMemory {
		history := memory.NewPriceHistoryStore()
		return &Stores{
			Catalog:  memory.NewCatalogStore(),
			Ledger:   history,
			History:  history,
			Changes:  memory.NewPriceChangeStore(),
			Runs:     memory.NewRunStore(),
			Progress: memory.NewProgressStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN(), pgstore.WithStatementTimeout(cfg.StatementTimeout))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: connect to postgres: %w", orchestrator.ErrFatal, err)
	}

	if !opts.SkipMigrations {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("%w: postgres migrations: %w", orchestrator.ErrFatal, err)
		}
		logger.Printf("Applied %d postgres migrations", len(applied))
	}

	ledger := Instrument(pgstore.NewPriceHistoryStore(pool), "postgres", opts.Metrics)
	stores := &Stores{
		Catalog:  pgstore.NewCatalogStore(pool),
		Ledger:   ledger,
		History:  ledger,
		Changes:  pgstore.NewPriceChangeStore(pool),
		Runs:     pgstore.NewRunStore(pool),
		Progress: pgstore.NewProgressStore(pool),
		DB:       pool,
	}
	cleanup := func() { pool.Close() }

	if cfg.Clickhouse.DSN == "" {
		return stores, cleanup, nil
	}

	var conn *chstore.Conn
	if opts.SkipMigrations {
		conn, err = chstore.NewConn(ctx, cfg.Clickhouse.DSN)
	} else {
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("%w: connect to clickhouse: %w", orchestrator.ErrFatal, err)
	}

	mirror := Instrument(chstore.NewPriceHistoryStore(conn), "clickhouse", opts.Metrics)
	stores.Mirror = mirror
	if cfg.HistorySource == config.HistorySourceClickhouse {
		stores.History = mirror
		logger.Printf("Resolving windows from ClickHouse")
	}

	cleanup = func() {
		conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}
