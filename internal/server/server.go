// Package server exposes the read-only HTTP API over pools, summaries and
// samples.
package server

import (
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"yieldscope/internal/observability"
	"yieldscope/internal/storage"
)

// Default list bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500

	// DefaultCacheTTL bounds staleness of cached list responses. Derived
	// state only changes on recompute, so a short TTL is enough.
	DefaultCacheTTL = 15 * time.Second
)

// Server serves the HTTP API. All endpoints are read-only.
type Server struct {
	poolStore    storage.PoolStore
	sampleStore  storage.SampleStore
	summaryStore storage.SummaryStore
	cache        *ristretto.Cache
	cacheTTL     time.Duration
	logger       *log.Logger
	now          func() time.Time

	mu            sync.Mutex
	startedAt     time.Time
	lastIngestion time.Time
	lastRecompute time.Time
	ingestionRuns int
	recomputeRuns int
}

// Options contains configuration for creating a Server.
type Options struct {
	PoolStore    storage.PoolStore
	SampleStore  storage.SampleStore
	SummaryStore storage.SummaryStore
	CacheTTL     time.Duration
	Logger       *log.Logger
	Now          func() time.Time
}

// New creates a Server with a response cache.
func New(opts Options) (*Server, error) {
	cacheTTL := opts.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     32 << 20, // 32 MiB of encoded responses
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		poolStore:    opts.PoolStore,
		sampleStore:  opts.SampleStore,
		summaryStore: opts.SummaryStore,
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       logger,
		now:          now,
		startedAt:    now(),
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/pools", s.instrument("/api/pools", s.handleListPools))
	mux.HandleFunc("GET /api/pools/{id}/history", s.instrument("/api/pools/{id}/history", s.handlePoolHistory))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return mux
}

// RecordIngestionRun updates status bookkeeping after an ingestion pass.
func (s *Server) RecordIngestionRun(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIngestion = at
	s.ingestionRuns++
}

// RecordRecomputeRun updates status bookkeeping after a recompute pass and
// drops cached list responses, which are stale once summaries change.
func (s *Server) RecordRecomputeRun(at time.Time) {
	s.mu.Lock()
	s.lastRecompute = at
	s.recomputeRuns++
	s.mu.Unlock()

	s.cache.Clear()
}

// instrument wraps a handler with request duration recording.
func (s *Server) instrument(route string, next func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		observability.RecordHTTPRequest(route, strconv.Itoa(sw.status), s.now().Sub(start).Seconds())
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
