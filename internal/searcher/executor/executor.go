package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/relevance"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/tracing"
)

type SearchResult struct {
	Query     string                  `json:"query"`
	Keywords  []string                `json:"keywords"`
	Scanned   int                     `json:"scanned"`
	TotalHits int                     `json:"total_hits"`
	Results   []ranker.ScoredResource `json:"results"`
}

// Request describes a single search.
type Request struct {
	Query    string
	Limit    int
	MinScore float64
}

type Executor struct {
	store      resource.Store
	snippetLen int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates an Executor over store. m may be nil.
func New(store resource.Store, snippetLen int, m *metrics.Metrics) *Executor {
	return &Executor{
		store:      store,
		snippetLen: snippetLen,
		metrics:    m,
		logger:     slog.Default().With("component", "query-executor"),
	}
}

// Execute scores every stored resource against the query. TotalHits counts
// all matches above the cut-off before the limit is applied.
func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	_, listSpan := tracing.Start(ctx, "store.list")
	candidates, err := e.store.List(ctx)
	listSpan.End()
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	_, rankSpan := tracing.Start(ctx, "rank")
	ranked, err := ranker.Rank(req.Query, candidates, ranker.Options{
		MinScore:   req.MinScore,
		SnippetLen: e.snippetLen,
	})
	rankSpan.SetAttr("candidates", len(candidates))
	rankSpan.End()
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.CandidatesScored.Add(float64(len(candidates)))
	}
	total := len(ranked)
	if req.Limit > 0 && len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}
	e.logger.Debug("query executed",
		"query", req.Query,
		"scanned", len(candidates),
		"total_hits", total,
	)
	return &SearchResult{
		Query:     req.Query,
		Keywords:  relevance.Keywords(req.Query),
		Scanned:   len(candidates),
		TotalHits: total,
		Results:   ranked,
	}, nil
}
