package relevance

import (
	"strings"
	"sync"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		query string
		text  string
		want  float64
	}{
		{"exact substring", "cat", "The cat sat", 1.0},
		{"exact phrase", "quick brown", "the Quick Brown fox", 1.0},
		{"substring inside word", "cat", "concatenate", 1.0},
		{"no overlap", "xyz abc", "completely unrelated text", 0.0},
		{"partial overlap", "quick brown fox", "the quick dog", 1.0 / 3.0},
		{"all keywords scattered", "fox quick", "the quick brown fox", 1.0},
		{"short tokens only", "is ok", "this text has none of it", 0.0},
		{"short tokens ignored in ratio", "a big dog", "that dog is big", 1.0},
		{"duplicate keywords count twice", "dog dog cat", "a dog barked", 2.0 / 3.0},
		{"empty query", "", "anything at all", 0.0},
		{"whitespace query", "   \t", "anything  at  all", 0.0},
		{"empty text", "quick fox", "", 0.0},
		{"both empty", "", "", 0.0},
		{"multibyte keyword", "café crème", "un café noir", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(tt.query, tt.text)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	pairs := [][2]string{
		{"Quick Brown Fox", "the QUICK dog"},
		{"CAT", "the cat sat"},
		{"Distributed Search", "search engines are DISTRIBUTED"},
	}
	for _, p := range pairs {
		base := MustScore(p[0], p[1])
		assert.Equal(t, base, MustScore(strings.ToUpper(p[0]), strings.ToLower(p[1])))
		assert.Equal(t, base, MustScore(strings.ToLower(p[0]), strings.ToUpper(p[1])))
	}
}

func TestScoreBounded(t *testing.T) {
	queries := []string{"", "a", "ab abc", "the quick brown fox", "zzz yyy xxx", "fox fox fox"}
	texts := []string{"", "fox", "the quick brown fox jumps", "abc", strings.Repeat("yyy ", 50)}
	for _, q := range queries {
		for _, text := range texts {
			got, err := Score(q, text)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, 0.0, "query=%q text=%q", q, text)
			assert.LessOrEqual(t, got, 1.0, "query=%q text=%q", q, text)
		}
	}
}

func TestScoreInvalidUTF8(t *testing.T) {
	bad := string([]byte{0xff, 0xfe, 'a'})

	_, err := Score(bad, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = Score("query", bad)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Panics(t, func() { MustScore(bad, "text") })
}

func TestScoreIdempotentAndConcurrent(t *testing.T) {
	const query, text = "quick brown fox", "the quick dog"
	want := MustScore(query, text)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, want, MustScore(query, text))
			}
		}()
	}
	wg.Wait()
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"the", "quick", "brown", "fox"}, Keywords("The Quick  brown\tfox"))
	assert.Equal(t, []string{"quick", "fox"}, Keywords("A quick OF fox"))
	assert.Empty(t, Keywords("is ok a"))
	assert.Empty(t, Keywords(""))
	assert.Equal(t, []string{"été"}, Keywords("été à"))
}

func TestExplain(t *testing.T) {
	exp, err := Explain("quick brown fox", "the quick dog")
	require.NoError(t, err)
	assert.Equal(t, TierKeywords, exp.Tier)
	assert.InDelta(t, 1.0/3.0, exp.Score, 1e-9)
	assert.Equal(t, []string{"quick"}, exp.Matched)
	assert.Equal(t, []string{"brown", "fox"}, exp.Missing)

	exp, err = Explain("CAT", "the cat sat")
	require.NoError(t, err)
	assert.Equal(t, Explanation{Score: 1.0, Tier: TierExact}, exp)

	exp, err = Explain("is ok", "nothing here")
	require.NoError(t, err)
	assert.Equal(t, TierNone, exp.Tier)
	assert.Zero(t, exp.Score)

	exp, err = Explain("", "nothing here")
	require.NoError(t, err)
	assert.Equal(t, TierNone, exp.Tier)
}

func TestExplainMatchesScore(t *testing.T) {
	cases := [][2]string{
		{"quick brown fox", "the quick dog"},
		{"cat", "The cat sat"},
		{"xyz abc", "completely unrelated text"},
		{"dog dog cat", "a dog barked"},
	}
	for _, c := range cases {
		exp, err := Explain(c[0], c[1])
		require.NoError(t, err)
		assert.Equal(t, MustScore(c[0], c[1]), exp.Score, "query=%q", c[0])
	}
}
