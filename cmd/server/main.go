// Package main provides the unified service that runs all components:
// - Ingestion (scheduled): pool catalog + per-pool history from the aggregator
// - Recompute (scheduled): per-pool derived summaries
// - HTTP API: ranked pool views, per-pool history, health/status/metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"yieldscope/internal/ingestion"
	"yieldscope/internal/llama"
	"yieldscope/internal/recompute"
	"yieldscope/internal/server"
	"yieldscope/internal/storage"
	chstore "yieldscope/internal/storage/clickhouse"
	"yieldscope/internal/storage/memory"
	"yieldscope/internal/storage/migrations"
	pgstore "yieldscope/internal/storage/postgres"
)

// Service holds all components of the unified service.
type Service struct {
	ingestionRunner   *ingestion.Runner
	recomputeRunner   *recompute.Runner
	api               *server.Server
	ingestInterval    time.Duration
	recomputeInterval time.Duration
	logger            *log.Logger
}

// allStores holds all storage implementations.
type allStores struct {
	poolStore    storage.PoolStore
	sampleStore  storage.SampleStore
	summaryStore storage.SummaryStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	apiURL := flag.String("api-url", os.Getenv("YIELDS_API_URL"), "Yields aggregator base URL (default: DefiLlama)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API listen address")
	ingestInterval := flag.Duration("ingest-interval", 1*time.Hour, "Ingestion run interval")
	recomputeInterval := flag.Duration("recompute-interval", 30*time.Minute, "Recompute run interval")
	maxPools := flag.Int("max-pools", 0, "Limit pools ingested per run (0 = no limit)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	var clientOpts []llama.ClientOption
	if *apiURL != "" {
		clientOpts = append(clientOpts, llama.WithBaseURL(*apiURL))
	}
	client := llama.NewClient(clientOpts...)

	api, err := server.New(server.Options{
		PoolStore:    stores.poolStore,
		SampleStore:  stores.sampleStore,
		SummaryStore: stores.summaryStore,
		Logger:       log.New(os.Stdout, "[api] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create API server: %v", err)
	}

	svc := &Service{
		ingestionRunner: ingestion.NewRunner(ingestion.RunnerOptions{
			PoolSource:    client,
			HistorySource: client,
			PoolStore:     stores.poolStore,
			SampleStore:   stores.sampleStore,
			MaxPools:      *maxPools,
			Logger:        log.New(os.Stdout, "[ingestion] ", log.LstdFlags),
		}),
		recomputeRunner: recompute.NewRunner(recompute.RunnerOptions{
			PoolStore:    stores.poolStore,
			SampleStore:  stores.sampleStore,
			SummaryStore: stores.summaryStore,
			Logger:       log.New(os.Stdout, "[recompute] ", log.LstdFlags),
		}),
		api:               api,
		ingestInterval:    *ingestInterval,
		recomputeInterval: *recomputeInterval,
		logger:            logger,
	}

	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

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

	err = svc.Run(ctx, *httpAddr)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Service error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// Run starts the unified service. It blocks until the context is cancelled
// or a component fails.
func (s *Service) Run(ctx context.Context, httpAddr string) error {
	s.logger.Println("Starting unified service...")

	errCh := make(chan error, 2)

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           s.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Printf("Starting HTTP server on %s", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go s.runIngestionLoop(ctx)
	go s.runRecomputeLoop(ctx)

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		s.logger.Printf("HTTP shutdown: %v", shutdownErr)
	}

	return err
}

// runIngestionLoop runs ingestion immediately, then on the interval.
func (s *Service) runIngestionLoop(ctx context.Context) {
	s.runIngestion(ctx)

	ticker := time.NewTicker(s.ingestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runIngestion(ctx)
		}
	}
}

func (s *Service) runIngestion(ctx context.Context) {
	start := time.Now()
	result, err := s.ingestionRunner.Run(ctx)
	if err != nil {
		s.logger.Printf("Ingestion failed: %v", err)
		return
	}
	s.api.RecordIngestionRun(time.Now())
	s.logger.Printf("Ingestion completed in %v (%d pools, %d samples)",
		time.Since(start), result.PoolsUpserted, result.SamplesStored)
}

// runRecomputeLoop waits one interval before the first pass so initial
// ingestion has data in place, then runs on the interval.
func (s *Service) runRecomputeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.recomputeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runRecompute(ctx)
		}
	}
}

func (s *Service) runRecompute(ctx context.Context) {
	start := time.Now()
	result, err := s.recomputeRunner.Run(ctx)
	if err != nil {
		s.logger.Printf("Recompute failed: %v", err)
		return
	}
	s.api.RecordRecomputeRun(time.Now())
	s.logger.Printf("Recompute completed in %v (%d summaries, %d skipped)",
		time.Since(start), result.SummariesComputed, result.PoolsSkipped)
}

// createStores creates all required stores and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			poolStore:    memory.NewPoolStore(),
			sampleStore:  memory.NewSampleStore(),
			summaryStore: memory.NewSummaryStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL (pools + summaries)
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse (samples)
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		poolStore:    pgstore.NewPoolStore(pool),
		summaryStore: pgstore.NewSummaryStore(pool),
		sampleStore:  chstore.NewSampleStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// loadEnvFile loads .env into the environment without overriding set vars.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
