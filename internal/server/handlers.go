package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"yieldscope/internal/domain"
	"yieldscope/internal/observability"
	"yieldscope/internal/storage"
)

// PoolView is one row of the /api/pools response: pool metadata joined with
// the derived summary. Summary fields are null until the pool has been
// recomputed at least once.
type PoolView struct {
	PoolID     string `json:"pool_id"`
	Project    string `json:"project"`
	Chain      string `json:"chain"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Stablecoin bool   `json:"stablecoin"`

	LatestTimestamp *int64   `json:"latest_timestamp"`
	TVLUSD          *float64 `json:"tvl_usd"`
	APY             *float64 `json:"apy"`
	APYBase         *float64 `json:"apy_base"`
	APYReward       *float64 `json:"apy_reward"`

	Slope       *float64 `json:"slope"`
	SampleCount *int     `json:"sample_count"`
	MinTVLUSD   *float64 `json:"min_tvl_usd"`
	MaxTVLUSD   *float64 `json:"max_tvl_usd"`
}

// PoolsResponse is the envelope of the /api/pools response.
type PoolsResponse struct {
	Count int        `json:"count"`
	Pools []PoolView `json:"pools"`
}

// HistoryPoint is one row of the /api/pools/{id}/history response.
type HistoryPoint struct {
	Timestamp  int64    `json:"timestamp"`
	TVLUSD     *float64 `json:"tvl_usd"`
	APY        *float64 `json:"apy"`
	APYBase    *float64 `json:"apy_base"`
	APYReward  *float64 `json:"apy_reward"`
	APYMean30d *float64 `json:"apy_mean_30d"`
}

// HistoryResponse is the envelope of the /api/pools/{id}/history response.
type HistoryResponse struct {
	PoolID string         `json:"pool_id"`
	Start  int64          `json:"start"`
	End    int64          `json:"end"`
	Count  int            `json:"count"`
	Points []HistoryPoint `json:"points"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// handleListPools serves GET /api/pools?category=&search=&limit=.
// Results are sorted by latest APY descending, pools without a known yield
// last, and capped at the requested limit.
func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	cacheKey := fmt.Sprintf("pools|%s|%s|%d", strings.ToLower(category), strings.ToLower(search), limit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		observability.RecordCacheHit()
		writeJSONBytes(w, cached.([]byte))
		return
	}
	observability.RecordCacheMiss()

	resp, err := s.listPools(r, category, search, limit)
	if err != nil {
		s.logger.Printf("list pools: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.Printf("encode pools response: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.cache.SetWithTTL(cacheKey, body, int64(len(body)), s.cacheTTL)
	writeJSONBytes(w, body)
}

func (s *Server) listPools(r *http.Request, category, search string, limit int) (*PoolsResponse, error) {
	ctx := r.Context()

	pools, err := s.poolStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	summaries, err := s.summaryStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	byPool := make(map[string]*domain.PoolSummary, len(summaries))
	for _, sum := range summaries {
		byPool[sum.PoolID] = sum
	}

	views := make([]PoolView, 0, len(pools))
	for _, p := range pools {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		views = append(views, buildView(p, byPool[p.PoolID]))
	}

	// Highest known yield first; pools without one sink to the bottom.
	// Pool ID breaks ties so pagination is stable.
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].APY, views[j].APY
		switch {
		case a != nil && b != nil && *a != *b:
			return *a > *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return views[i].PoolID < views[j].PoolID
	})

	if len(views) > limit {
		views = views[:limit]
	}

	return &PoolsResponse{Count: len(views), Pools: views}, nil
}

// handlePoolHistory serves GET /api/pools/{id}/history?start=&end=.
func (s *Server) handlePoolHistory(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("id")
	ctx := r.Context()

	if _, err := s.poolStore.GetByID(ctx, poolID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("pool %q not found", poolID))
			return
		}
		s.logger.Printf("get pool %s: %v", poolID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	start, end, err := parseTimeRange(r, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := s.sampleStore.GetByTimeRange(ctx, poolID, start, end)
	if err != nil {
		s.logger.Printf("history for pool %s: %v", poolID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	points := make([]HistoryPoint, len(samples))
	for i, sm := range samples {
		points[i] = HistoryPoint{
			Timestamp:  sm.Timestamp,
			TVLUSD:     sm.TVLUSD,
			APY:        sm.APY,
			APYBase:    sm.APYBase,
			APYReward:  sm.APYReward,
			APYMean30d: sm.APYMean30d,
		}
	}

	writeJSON(w, &HistoryResponse{
		PoolID: poolID,
		Start:  start,
		End:    end,
		Count:  len(points),
		Points: points,
	})
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	StartedAt     time.Time `json:"started_at"`
	LastIngestion time.Time `json:"last_ingestion,omitempty"`
	LastRecompute time.Time `json:"last_recompute,omitempty"`
	IngestionRuns int       `json:"ingestion_runs"`
	RecomputeRuns int       `json:"recompute_runs"`
}

// handleStatus returns service status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        s.now().Sub(s.startedAt).String(),
		StartedAt:     s.startedAt,
		LastIngestion: s.lastIngestion,
		LastRecompute: s.lastRecompute,
		IngestionRuns: s.ingestionRuns,
		RecomputeRuns: s.recomputeRuns,
	}
	s.mu.Unlock()

	writeJSON(w, resp)
}

// parseTimeRange reads optional start/end query parameters as epoch seconds.
// Defaults cover all history up to now.
func parseTimeRange(r *http.Request, now time.Time) (int64, int64, error) {
	start := int64(0)
	end := now.Unix()

	if raw := r.URL.Query().Get("start"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid start %q", raw)
		}
		start = v
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid end %q", raw)
		}
		end = v
	}
	if end < start {
		return 0, 0, fmt.Errorf("end %d before start %d", end, start)
	}
	return start, end, nil
}

func matchesSearch(p *domain.Pool, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(p.Symbol), needle) ||
		strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Project), needle)
}

func buildView(p *domain.Pool, sum *domain.PoolSummary) PoolView {
	view := PoolView{
		PoolID:     p.PoolID,
		Project:    p.Project,
		Chain:      p.Chain,
		Symbol:     p.Symbol,
		Name:       p.Name,
		Category:   p.Category,
		Stablecoin: p.Stablecoin,
	}
	if sum == nil {
		return view
	}

	ts := sum.LatestTimestamp
	view.LatestTimestamp = &ts
	view.TVLUSD = sum.LatestTVLUSD
	view.APY = sum.LatestAPY
	view.APYBase = sum.LatestAPYBase
	view.APYReward = sum.LatestAPYReward

	slope := sum.Slope
	count := sum.SampleCount
	minTVL := sum.MinTVLUSD
	maxTVL := sum.MaxTVLUSD
	view.Slope = &slope
	view.SampleCount = &count
	view.MinTVLUSD = &minTVL
	view.MaxTVLUSD = &maxTVL

	return view
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONBytes(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
