package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/resource"
	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{ *resource.MemoryStore }

func (*failingStore) List(context.Context) ([]resource.Resource, error) {
	return nil, apperrors.ErrUnavailable
}

func seed(t *testing.T) *resource.MemoryStore {
	t.Helper()
	store := resource.NewMemoryStore()
	for _, r := range []resource.Resource{
		{ID: "a", Content: "the quick dog"},
		{ID: "b", Content: "the quick brown fox"},
		{ID: "c", Content: "brown bread"},
		{ID: "d", Content: "nothing relevant"},
	} {
		_, err := store.Put(context.Background(), r)
		require.NoError(t, err)
	}
	return store
}

func TestExecute(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	exec := New(seed(t), 0, m)

	res, err := exec.Execute(context.Background(), Request{Query: "quick brown fox", Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, 3, res.TotalHits)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "b", res.Results[0].ID)
	assert.Equal(t, []string{"quick", "brown", "fox"}, res.Keywords)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.CandidatesScored))
}

func TestExecuteErrors(t *testing.T) {
	exec := New(seed(t), 0, nil)
	_, err := exec.Execute(context.Background(), Request{Query: string([]byte{0xff})})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	exec = New(&failingStore{resource.NewMemoryStore()}, 0, nil)
	_, err = exec.Execute(context.Background(), Request{Query: "anything"})
	assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
}
