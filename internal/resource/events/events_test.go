package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	events []kafka.Event
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, e kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls++
	return f.err
}

func TestPublisher(t *testing.T) {
	prod := &fakeProducer{}
	var seen []Op
	pub := NewPublisher(prod, func(op Op) { seen = append(seen, op) })

	require.NoError(t, pub.Publish(context.Background(), "doc-1", OpPut))
	require.Len(t, prod.events, 1)
	assert.Equal(t, "doc-1", prod.events[0].Key)
	ev := prod.events[0].Value.(ChangeEvent)
	assert.Equal(t, OpPut, ev.Op)
	assert.False(t, ev.At.IsZero())
	assert.Equal(t, []Op{OpPut}, seen)

	prod.err = errors.New("broker down")
	err := pub.Publish(context.Background(), "doc-1", OpDelete)
	assert.ErrorIs(t, err, prod.err)
	assert.Equal(t, []Op{OpPut}, seen)
}

func TestNilPublisherIsNoop(t *testing.T) {
	var pub *Publisher
	assert.NoError(t, pub.Publish(context.Background(), "x", OpPut))
}

func TestHandleChange(t *testing.T) {
	inv := &fakeInvalidator{}
	var seen []Op
	handler := HandleChange(inv, func(op Op) { seen = append(seen, op) })

	payload, err := json.Marshal(ChangeEvent{ResourceID: "doc-1", Op: OpDelete})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), []byte("doc-1"), payload))
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, []Op{OpDelete}, seen)

	require.NoError(t, handler(context.Background(), nil, []byte("not json")))
	assert.Equal(t, 1, inv.calls)

	inv.err = errors.New("redis down")
	assert.ErrorIs(t, handler(context.Background(), nil, payload), inv.err)
}

func TestHandleChangeWithoutCache(t *testing.T) {
	payload, _ := json.Marshal(ChangeEvent{ResourceID: "a", Op: OpPut})
	assert.NoError(t, HandleChange(nil, nil)(context.Background(), nil, payload))
}
