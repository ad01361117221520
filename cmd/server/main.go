// Package main provides the unified server that runs all components together:
// - HTTP API: price change queries, health, status, metrics
// - Ingestion (scheduled): daily tcgcsv catalog and price snapshot
// - Trends (scheduled): price change computation for every catalog item
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

	"tcg-price-trends/internal/api"
	"tcg-price-trends/internal/app"
	"tcg-price-trends/internal/config"
	"tcg-price-trends/internal/ingestion"
	"tcg-price-trends/internal/observability"
	"tcg-price-trends/internal/orchestrator"
	"tcg-price-trends/internal/scheduler"
)

// Job names.
const (
	jobIngest = "ingest"
	jobTrends = "trends"
)

// Server holds all components of the unified service.
type Server struct {
	orch      *orchestrator.Orchestrator
	sched     *scheduler.Scheduler
	startedAt time.Time
}

// statusResponse is the body of GET /status.
type statusResponse struct {
	StartedAt    time.Time               `json:"started_at"`
	Uptime       string                  `json:"uptime"`
	TrendState   orchestrator.State      `json:"trend_state"`
	LastTrendRun *runSummary             `json:"last_trend_run,omitempty"`
	Jobs         []scheduler.JobStatus   `json:"jobs"`
}

// runSummary is the JSON view of an orchestrator.RunResult.
type runSummary struct {
	RunID             string   `json:"run_id"`
	Today             string   `json:"today"`
	Status            string   `json:"status"`
	TotalItems        int      `json:"total_items"`
	ChunksAttempted   int      `json:"chunks_attempted"`
	ChunksSkipped     int      `json:"chunks_skipped"`
	ItemsWritten      int      `json:"items_written"`
	ItemsWithoutPrice int      `json:"items_without_price"`
	ItemsRejected     int      `json:"items_rejected"`
	Errors            []string `json:"errors,omitempty"`
	Duration          string   `json:"duration"`
}

func main() {
	// Parse flags (config values as defaults)
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	skipMigrations := flag.Bool("skip-migrations", false, "Do not apply migrations on startup")
	noIngest := flag.Bool("no-ingest", false, "Do not schedule daily ingestion")
	runOnStart := flag.Bool("run-on-start", false, "Trigger a trend run immediately after startup")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if !*useMemory {
		if err := cfg.Validate(); err != nil {
			logger.Fatalf("Invalid config: %v", err)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	server := &Server{
		orch: orchestrator.New(orchestrator.Options{
			Catalog:    stores.Catalog,
			History:    stores.History,
			Changes:    stores.Changes,
			Runs:       stores.Runs,
			Progress:   stores.Progress,
			ChunkSize:  cfg.ChunkSize,
			ChunkDelay: cfg.ChunkDelay,
			Logger:     logger,
			Metrics:    observability.DefaultMetrics,
		}),
		sched:     scheduler.New(ctx, logger),
		startedAt: time.Now().UTC(),
	}

	err = server.sched.Register(jobTrends, cfg.Schedule.TrendsCron, func(ctx context.Context) error {
		_, err := server.orch.Run(ctx)
		return err
	})
	if err != nil {
		logger.Fatalf("Failed to register %s job: %v", jobTrends, err)
	}

	if !*noIngest && !*useMemory {
		runner := ingestion.NewRunner(ingestion.RunnerOptions{
			Source:     ingestion.NewTCGCSVClient(cfg.Ingestion.BaseURL, cfg.Ingestion.Timeout),
			Catalog:    stores.Catalog,
			History:    stores.Ledger,
			Mirror:     stores.Mirror,
			CategoryID: cfg.Ingestion.CategoryID,
			Logger:     logger,
			Metrics:    observability.DefaultMetrics,
		})
		err = server.sched.Register(jobIngest, cfg.Schedule.IngestCron, func(ctx context.Context) error {
			_, err := runner.Run(ctx)
			return err
		})
		if err != nil {
			logger.Fatalf("Failed to register %s job: %v", jobIngest, err)
		}
	}

	apiOpts := api.Options{
		Changes: stores.Changes,
		Status:  server.status,
		Metrics: observability.Handler(),
		Logger:  logger,
	}
	if stores.DB != nil {
		apiOpts.DB = stores.DB
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(apiOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	server.sched.Start()
	if *runOnStart {
		if err := server.sched.RunNow(jobTrends); err != nil {
			logger.Printf("Failed to trigger %s job: %v", jobTrends, err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("Starting HTTP server on %s", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Printf("HTTP server error: %v", err)
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown error: %v", err)
	}
	server.sched.Stop()
	close(done)

	logger.Println("Shutdown complete")
}

// status reports scheduler jobs and the latest trend run.
func (s *Server) status() any {
	return statusResponse{
		StartedAt:    s.startedAt,
		Uptime:       time.Since(s.startedAt).Round(time.Second).String(),
		TrendState:   s.orch.State(),
		LastTrendRun: summarize(s.orch.LastResult()),
		Jobs:         s.sched.Status(),
	}
}

func summarize(r *orchestrator.RunResult) *runSummary {
	if r == nil {
		return nil
	}
	sum := &runSummary{
		RunID:             r.RunID.String(),
		Today:             r.Today.Format("2006-01-02"),
		Status:            string(r.Status),
		TotalItems:        r.TotalItems,
		ChunksAttempted:   r.ChunksAttempted,
		ChunksSkipped:     r.ChunksSkipped,
		ItemsWritten:      r.ItemsWritten,
		ItemsWithoutPrice: r.ItemsWithoutPrice,
		ItemsRejected:     r.ItemsRejected,
		Duration:          r.Duration.Round(time.Millisecond).String(),
	}
	for _, e := range r.Errors {
		sum.Errors = append(sum.Errors, e.Error())
	}
	return sum
}
