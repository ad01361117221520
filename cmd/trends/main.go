// Package main provides the trend engine entry point.
// Computes price change records for every catalog item, once or on a cron schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tcg-price-trends/internal/app"
	"tcg-price-trends/internal/config"
	"tcg-price-trends/internal/observability"
	"tcg-price-trends/internal/orchestrator"
	"tcg-price-trends/internal/scheduler"
)

func main() {
	// Parse flags (config values as defaults)
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	schedule := flag.Bool("schedule", false, "Run on the trends cron schedule instead of once")
	resume := flag.Bool("resume", false, "Continue today's run from the saved offset")
	startOffset := flag.Int("start-offset", 0, "First catalog offset to process")
	chunkSize := flag.Int("chunk-size", 0, "Items per chunk (overrides config)")
	historySource := flag.String("history-source", "", "Window resolution source: postgres or clickhouse (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	skipMigrations := flag.Bool("skip-migrations", false, "Do not apply migrations on startup")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[trends] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *chunkSize > 0 {
		cfg.ChunkSize = *chunkSize
	}
	if *historySource != "" {
		cfg.HistorySource = *historySource
	}
	if !*useMemory {
		if err := cfg.Validate(); err != nil {
			logger.Fatalf("Invalid config: %v", err)
		}
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping after the current chunk...", sig)
		cancel()
	}()

	stores, cleanup, err := app.Open(ctx, cfg, app.OpenOptions{
		UseMemory:      *useMemory,
		SkipMigrations: *skipMigrations,
		Logger:         logger,
		Metrics:        observability.DefaultMetrics,
	})
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer cleanup()

	orch := orchestrator.New(orchestrator.Options{
		Catalog:     stores.Catalog,
		History:     stores.History,
		Changes:     stores.Changes,
		Runs:        stores.Runs,
		Progress:    stores.Progress,
		ChunkSize:   cfg.ChunkSize,
		ChunkDelay:  cfg.ChunkDelay,
		StartOffset: *startOffset,
		Resume:      *resume,
		Logger:      logger,
		Metrics:     observability.DefaultMetrics,
	})

	if !*schedule {
		result, err := orch.Run(ctx)
		if err != nil {
			if errors.Is(err, orchestrator.ErrFatal) {
				logger.Fatalf("Trend run failed: %v", err)
			}
			logger.Printf("Trend run stopped: %v", err)
		}
		printSummary(logger, result)
		if result != nil && result.ChunksSkipped > 0 {
			os.Exit(2)
		}
		return
	}

	sched := scheduler.New(ctx, logger)
	err = sched.Register("trends", cfg.Schedule.TrendsCron, func(ctx context.Context) error {
		result, err := orch.Run(ctx)
		printSummary(logger, result)
		return err
	})
	if err != nil {
		logger.Fatalf("Failed to register schedule: %v", err)
	}
	sched.Start()
	logger.Printf("Trend runs scheduled with %q", cfg.Schedule.TrendsCron)

	<-ctx.Done()
	sched.Stop()
	logger.Println("Shutdown complete")
}

func printSummary(logger *log.Logger, result *orchestrator.RunResult) {
	if result == nil {
		return
	}
	logger.Printf("Run %s (%s): %d items, %d/%d chunks ok, %d written, %d without price, %d rejected, took %s",
		result.RunID, result.Status, result.TotalItems,
		result.ChunksAttempted-result.ChunksSkipped, result.ChunksAttempted,
		result.ItemsWritten, result.ItemsWithoutPrice, result.ItemsRejected,
		result.Duration.Round(time.Second))
	for _, e := range result.Errors {
		logger.Printf("  - %v", e)
	}
}
