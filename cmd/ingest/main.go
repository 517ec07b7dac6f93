// Package main provides a one-shot ingestion run: fetch the pool catalog
// and per-pool history from the aggregator and store them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"yieldscope/internal/ingestion"
	"yieldscope/internal/llama"
	chstore "yieldscope/internal/storage/clickhouse"
	"yieldscope/internal/storage/migrations"
	pgstore "yieldscope/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	apiURL := flag.String("api-url", os.Getenv("YIELDS_API_URL"), "Yields aggregator base URL (default: DefiLlama)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	maxPools := flag.Int("max-pools", 0, "Limit pools ingested per run (0 = no limit)")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall run timeout")

	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling...", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Postgres migrations failed: %v", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("ClickHouse migrations failed: %v", err)
	}
	defer chConn.Close()

	var clientOpts []llama.ClientOption
	if *apiURL != "" {
		clientOpts = append(clientOpts, llama.WithBaseURL(*apiURL))
	}
	client := llama.NewClient(clientOpts...)

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		PoolSource:    client,
		HistorySource: client,
		PoolStore:     pgstore.NewPoolStore(pool),
		SampleStore:   chstore.NewSampleStore(chConn),
		MaxPools:      *maxPools,
		Logger:        logger,
	})

	start := time.Now()
	result, err := runner.Run(ctx)
	if err != nil {
		logger.Fatalf("Ingestion failed: %v", err)
	}

	fmt.Printf("Ingestion run %s completed in %v\n", result.RunID, time.Since(start))
	fmt.Printf("  Pools upserted: %d\n", result.PoolsUpserted)
	fmt.Printf("  Samples stored: %d\n", result.SamplesStored)
	fmt.Printf("  Points dropped: %d\n", result.PointsDropped)
	fmt.Printf("  Pool errors:    %d\n", result.PoolErrors)
}

// loadEnvFile loads .env into the environment without overriding set vars.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
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
