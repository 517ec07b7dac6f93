// Package main provides a one-shot recompute run: refresh every pool's
// derived summary from stored samples.
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

	"yieldscope/internal/recompute"
	chstore "yieldscope/internal/storage/clickhouse"
	"yieldscope/internal/storage/migrations"
	pgstore "yieldscope/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	windowDays := flag.Int("window-days", 0, "Estimation window in days (0 = default 90)")
	timeout := flag.Duration("timeout", 15*time.Minute, "Overall run timeout")

	flag.Parse()

	logger := log.New(os.Stdout, "[recompute] ", log.LstdFlags|log.Lshortfile)

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

	runner := recompute.NewRunner(recompute.RunnerOptions{
		PoolStore:     pgstore.NewPoolStore(pool),
		SampleStore:   chstore.NewSampleStore(chConn),
		SummaryStore:  pgstore.NewSummaryStore(pool),
		WindowSeconds: int64(*windowDays) * 24 * 3600,
		Logger:        logger,
	})

	start := time.Now()
	result, err := runner.Run(ctx)
	if err != nil {
		logger.Fatalf("Recompute failed: %v", err)
	}

	fmt.Printf("Recompute run %s completed in %v\n", result.RunID, time.Since(start))
	fmt.Printf("  Summaries computed: %d\n", result.SummariesComputed)
	fmt.Printf("  Pools skipped:      %d\n", result.PoolsSkipped)
	fmt.Printf("  Pool errors:        %d\n", result.PoolErrors)
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
