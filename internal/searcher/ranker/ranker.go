package ranker

import (
	"log/slog"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/relevance"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/resource"
)

type ScoredResource struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Options controls filtering and truncation. Candidates scoring below
// MinScore are dropped; zero scores are always dropped. Limit <= 0 keeps
// everything.
type Options struct {
	MinScore   float64
	Limit      int
	SnippetLen int
}

// Rank scores every candidate against query and returns the matches ordered
// by score, highest first, with ties broken by ID. It fails only when the
// query itself is invalid; invalid candidates are skipped.
func Rank(query string, candidates []resource.Resource, opts Options) ([]ScoredResource, error) {
	if _, err := relevance.Score(query, ""); err != nil {
		return nil, err
	}
	result := make([]ScoredResource, 0)
	for _, c := range candidates {
		score, err := relevance.Score(query, c.SearchText())
		if err != nil {
			slog.Default().Warn("skipping unscorable resource", "component", "ranker", "id", c.ID, "error", err)
			continue
		}
		if score == 0 || score < opts.MinScore {
			continue
		}
		result = append(result, ScoredResource{
			ID:      c.ID,
			Title:   c.Title,
			Score:   math.Round(score*10000) / 10000,
			Snippet: snippet(c.Content, opts.SnippetLen),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].ID < result[j].ID
	})
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// snippet returns at most n runes of s, or nothing when n <= 0.
func snippet(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
