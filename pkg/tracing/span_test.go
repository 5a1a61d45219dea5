package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartBuildsTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := Start(ctx, "search")
	assert.Equal(t, "req-1", root.TraceID)
	assert.Same(t, root, FromContext(ctx))

	_, list := Start(ctx, "store.list")
	list.End()
	_, rank := Start(ctx, "rank")
	rank.SetAttr("candidates", 3)
	rank.End()
	root.End()

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "store.list", children[0].Name)
	assert.Equal(t, "req-1", children[1].TraceID)

	d := root.Duration()
	root.End()
	assert.Equal(t, d, root.Duration())
}

func TestStartWithoutRequestID(t *testing.T) {
	_, span := Start(context.Background(), "score")
	assert.Len(t, span.TraceID, 36)
	assert.Nil(t, FromContext(context.Background()))
}

func TestLogOnlyAtDebug(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, root := Start(context.Background(), "search")
	_, child := Start(ctx, "rank")
	child.SetAttr("hits", 2)
	child.End()
	root.End()

	slog.SetDefault(logger.New(&buf, "info", "text"))
	root.Log(ctx)
	assert.Empty(t, buf.String())

	slog.SetDefault(logger.New(&buf, "debug", "text"))
	root.Log(ctx)
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "span=rank")
	assert.Contains(t, out, "hits=2")
	assert.Contains(t, out, "depth=1")
}
