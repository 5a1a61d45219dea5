package resource

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       CreateRequest
		badFields []string
	}{
		{"valid", CreateRequest{ID: "hello", Title: "Greeting", Content: "Hello, world!"}, nil},
		{"valid without id", CreateRequest{Content: "body"}, nil},
		{"missing content", CreateRequest{ID: "x", Content: "   "}, []string{"content"}},
		{"invalid utf8 content", CreateRequest{Content: string([]byte{0xff})}, []string{"content"}},
		{"long id", CreateRequest{ID: strings.Repeat("i", maxIDLength+1), Content: "c"}, []string{"id"}},
		{"id with slash", CreateRequest{ID: "a/b", Content: "c"}, []string{"id"}},
		{"id with padding", CreateRequest{ID: " a", Content: "c"}, []string{"id"}},
		{"long title", CreateRequest{Title: strings.Repeat("t", maxTitleLength+1), Content: "c"}, []string{"title"}},
		{"several", CreateRequest{ID: "a?b", Title: string([]byte{0xc3}), Content: ""}, []string{"content", "id", "title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.req)
			if len(tt.badFields) == 0 {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			for _, f := range tt.badFields {
				assert.Contains(t, vErr.Fields, f)
			}
			assert.Len(t, vErr.Fields, len(tt.badFields))
		})
	}
}

func TestFromRequest(t *testing.T) {
	r := FromRequest(&CreateRequest{ID: "doc-1", Title: "  Title ", Content: "body"})
	assert.Equal(t, Resource{ID: "doc-1", Title: "Title", Content: "body"}, r)

	generated := FromRequest(&CreateRequest{Content: "body"})
	assert.Len(t, generated.ID, 36)
}

func TestSearchText(t *testing.T) {
	assert.Equal(t, "body", Resource{Content: "body"}.SearchText())
	assert.Equal(t, "Title\nbody", Resource{Title: "Title", Content: "body"}.SearchText())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	first, err := store.Put(ctx, Resource{ID: "b", Content: "second"})
	require.NoError(t, err)
	_, err = store.Put(ctx, Resource{ID: "a", Content: "first"})
	require.NoError(t, err)

	updated, err := store.Put(ctx, Resource{ID: "b", Content: "second, edited"})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))

	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "second, edited", got.Content)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	require.NoError(t, store.Delete(ctx, "a"))
	assert.ErrorIs(t, store.Delete(ctx, "a"), apperrors.ErrResourceNotFound)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}
