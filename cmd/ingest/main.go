// Package main provides the daily catalog and price ingestion entry point.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tcg-price-trends/internal/app"
	"tcg-price-trends/internal/config"
	"tcg-price-trends/internal/ingestion"
	"tcg-price-trends/internal/observability"
	"tcg-price-trends/internal/scheduler"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	schedule := flag.Bool("schedule", false, "Run on the ingest cron schedule instead of once")
	baseURL := flag.String("base-url", "", "tcgcsv base URL (overrides config)")
	categoryID := flag.Int("category", 0, "TCGplayer category id (overrides config)")
	skipMigrations := flag.Bool("skip-migrations", false, "Do not apply migrations on startup")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *baseURL != "" {
		cfg.Ingestion.BaseURL = *baseURL
	}
	if *categoryID > 0 {
		cfg.Ingestion.CategoryID = *categoryID
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()

	stores, cleanup, err := app.Open(ctx, cfg, app.OpenOptions{
		SkipMigrations: *skipMigrations,
		Logger:         logger,
		Metrics:        observability.DefaultMetrics,
	})
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer cleanup()

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:     ingestion.NewTCGCSVClient(cfg.Ingestion.BaseURL, cfg.Ingestion.Timeout),
		Catalog:    stores.Catalog,
		History:    stores.Ledger,
		Mirror:     stores.Mirror,
		CategoryID: cfg.Ingestion.CategoryID,
		Logger:     logger,
		Metrics:    observability.DefaultMetrics,
	})

	if !*schedule {
		if _, err := runner.Run(ctx); err != nil {
			logger.Fatalf("Ingestion failed: %v", err)
		}
		return
	}

	sched := scheduler.New(ctx, logger)
	err = sched.Register("ingest", cfg.Schedule.IngestCron, func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		return err
	})
	if err != nil {
		logger.Fatalf("Failed to register schedule: %v", err)
	}
	sched.Start()
	logger.Printf("Ingestion scheduled with %q", cfg.Schedule.IngestCron)

	<-ctx.Done()
	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(30 * time.Second):
		logger.Println("Graceful shutdown timed out after 30s")
	}
	logger.Println("Shutdown complete")
}
