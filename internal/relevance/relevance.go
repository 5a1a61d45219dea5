// Package relevance scores how well a candidate text matches a query using
// two tiers: an exact case-insensitive substring match scores 1.0, otherwise
// the score is the fraction of query keywords found anywhere in the text.
//
// Scores always fall in [0, 1]. A query with no content scores 0 against
// every text. The functions here hold no state and are safe for concurrent
// use.
package relevance

import (
	"strings"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/errors"
)

// minKeywordLength is the shortest query token that takes part in the
// overlap tier. Shorter tokens ("is", "of", "a") are ignored.
const minKeywordLength = 3

// Tier identifies which rule produced a score.
type Tier string

const (
	TierNone     Tier = "none"
	TierExact    Tier = "exact"
	TierKeywords Tier = "keywords"
)

// Explanation describes how a score was reached.
type Explanation struct {
	Score    float64  `json:"score"`
	Tier     Tier     `json:"tier"`
	Keywords []string `json:"keywords,omitempty"`
	Matched  []string `json:"matched,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

// Score returns the relevance of text to query in the range [0, 1].
// It fails with ErrInvalidInput when either argument is not valid UTF-8.
func Score(query, text string) (float64, error) {
	q, t, err := normalize(query, text)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(q) == "" {
		return 0, nil
	}
	if strings.Contains(t, q) {
		return 1.0, nil
	}
	keywords := keywords(q)
	if len(keywords) == 0 {
		return 0, nil
	}
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(t, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords)), nil
}

// MustScore is like Score but panics on invalid input.
func MustScore(query, text string) float64 {
	score, err := Score(query, text)
	if err != nil {
		panic(err)
	}
	return score
}

// Keywords returns the lower-cased query tokens used by the overlap tier,
// in query order. Duplicates are kept.
func Keywords(query string) []string {
	return keywords(strings.ToLower(query))
}

// Explain scores text against query and reports the tier that fired along
// with the keywords that did and did not match.
func Explain(query, text string) (Explanation, error) {
	q, t, err := normalize(query, text)
	if err != nil {
		return Explanation{}, err
	}
	if strings.TrimSpace(q) == "" {
		return Explanation{Tier: TierNone}, nil
	}
	if strings.Contains(t, q) {
		return Explanation{Score: 1.0, Tier: TierExact}, nil
	}
	exp := Explanation{Tier: TierKeywords, Keywords: keywords(q)}
	if len(exp.Keywords) == 0 {
		exp.Tier = TierNone
		return exp, nil
	}
	for _, kw := range exp.Keywords {
		if strings.Contains(t, kw) {
			exp.Matched = append(exp.Matched, kw)
		} else {
			exp.Missing = append(exp.Missing, kw)
		}
	}
	exp.Score = float64(len(exp.Matched)) / float64(len(exp.Keywords))
	return exp, nil
}

func normalize(query, text string) (string, string, error) {
	if !utf8.ValidString(query) {
		return "", "", apperrors.InvalidInput("query is not valid UTF-8")
	}
	if !utf8.ValidString(text) {
		return "", "", apperrors.InvalidInput("text is not valid UTF-8")
	}
	return strings.ToLower(query), strings.ToLower(text), nil
}

// keywords expects an already lower-cased query.
func keywords(q string) []string {
	fields := strings.Fields(q)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minKeywordLength {
			continue
		}
		out = append(out, f)
	}
	return out
}
