package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/relevance"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
}

// Options carries the request limits enforced by the handler.
type Options struct {
	DefaultLimit int
	MaxResults   int
	MinScore     float64
	MaxQueryLen  int
}

type Handler struct {
	executor SearchExecutor
	cache    *cache.QueryCache
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
}

// New creates a Handler. queryCache and m may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, m *metrics.Metrics, opts Options) *Handler {
	return &Handler{
		executor: exec,
		cache:    queryCache,
		metrics:  m,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// ScoreRequest is the body of POST /api/v1/score.
type ScoreRequest struct {
	Query   string `json:"query"`
	Text    string `json:"text"`
	Explain bool   `json:"explain"`
}

// ScoreResponse is returned by POST /api/v1/score.
type ScoreResponse struct {
	Score       float64                `json:"score"`
	Explanation *relevance.Explanation `json:"explanation,omitempty"`
}

// Score computes the relevance of a single text to a query. Both fields must
// be present in the body; null or non-string values are rejected.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var req ScoreRequest
	fields := []struct {
		name string
		dst  *string
	}{{"query", &req.Query}, {"text", &req.Text}}
	for _, f := range fields {
		field, dst := f.name, f.dst
		v, ok := raw[field]
		if !ok || string(v) == "null" {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("field '%s' is required", field))
			return
		}
		if err := json.Unmarshal(v, dst); err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("field '%s' must be a string", field))
			return
		}
	}
	if v, ok := raw["explain"]; ok {
		if err := json.Unmarshal(v, &req.Explain); err != nil {
			h.writeError(w, http.StatusBadRequest, "field 'explain' must be a boolean")
			return
		}
	}

	exp, err := relevance.Explain(req.Query, req.Text)
	if err != nil {
		h.countScore("error")
		h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.Message(err, "scoring failed"))
		return
	}
	h.countScore(string(exp.Tier))

	resp := ScoreResponse{Score: exp.Score}
	if req.Explain {
		resp.Explanation = &exp
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Search ranks stored resources against the q parameter.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search")
	defer func() {
		span.End()
		span.Log(ctx)
	}()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if h.opts.MaxQueryLen > 0 && len(query) > h.opts.MaxQueryLen {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("query must be at most %d bytes", h.opts.MaxQueryLen))
		return
	}

	req := executor.Request{Query: query, Limit: h.opts.DefaultLimit, MinScore: h.opts.MinScore}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.opts.MaxResults {
			parsed = h.opts.MaxResults
		}
		req.Limit = parsed
	}
	if minStr := r.URL.Query().Get("min_score"); minStr != "" {
		parsed, err := strconv.ParseFloat(minStr, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			h.writeError(w, http.StatusBadRequest, "min_score must be a number between 0 and 1")
			return
		}
		req.MinScore = parsed
	}

	var result *executor.SearchResult
	var err error
	cacheHit := false

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, req)
		})
	} else {
		result, err = h.executor.Execute(ctx, req)
	}

	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		h.countSearch("error", "", 0, start)
		log.Error("search execution failed", "query", query, "error", err, "status_code", status)
		h.writeError(w, status, apperrors.Message(err, "search failed"))
		return
	}

	resp := *result
	resp.Query = query
	if resp.Results == nil {
		resp.Results = []ranker.ScoredResource{}
	}

	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	} else if h.cache == nil {
		cacheStatus = "disabled"
	}
	span.SetAttr("cache", cacheStatus)
	span.SetAttr("total_hits", resp.TotalHits)
	resultType := "hit"
	if resp.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.countSearch(resultType, cacheStatus, len(resp.Results), start)

	log.Info("search completed",
		"query", query,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, &resp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) countScore(tier string) {
	if h.metrics != nil {
		h.metrics.ScoreRequestsTotal.WithLabelValues(tier).Inc()
	}
}

func (h *Handler) countSearch(resultType, cacheStatus string, returned int, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if cacheStatus != "" {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
		h.metrics.SearchResultsCount.Observe(float64(returned))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
