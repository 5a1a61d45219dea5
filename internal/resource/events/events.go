// Package events carries resource change notifications over Kafka so that
// every search instance can drop cached results when the corpus changes.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/kafka"
)

// Op names the kind of change applied to a resource.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// ChangeEvent is the Kafka payload published after a resource is stored or
// removed.
type ChangeEvent struct {
	ResourceID string    `json:"resource_id"`
	Op         Op        `json:"op"`
	At         time.Time `json:"at"`
}

// Producer is the subset of kafka.Producer used by Publisher.
type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher emits ChangeEvents keyed by resource ID. A nil *Publisher is a
// valid no-op.
type Publisher struct {
	producer Producer
	observe  func(op Op)
	logger   *slog.Logger
}

// NewPublisher wraps producer. observe, if non-nil, is called for every
// event successfully published.
func NewPublisher(producer Producer, observe func(op Op)) *Publisher {
	return &Publisher{
		producer: producer,
		observe:  observe,
		logger:   slog.Default().With("component", "resource-events"),
	}
}

// Publish sends a change event for id. Failures are returned so the caller
// can decide whether they matter.
func (p *Publisher) Publish(ctx context.Context, id string, op Op) error {
	if p == nil || p.producer == nil {
		return nil
	}
	event := kafka.Event{
		Key: id,
		Value: ChangeEvent{
			ResourceID: id,
			Op:         op,
			At:         time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing %s event for %s: %w", op, id, err)
	}
	if p.observe != nil {
		p.observe(op)
	}
	p.logger.Debug("change event published", "resource_id", id, "op", op)
	return nil
}

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// HandleChange returns a Kafka MessageHandler that invalidates the search
// cache for every change event. Undecodable messages are logged and
// acknowledged so they do not block the partition.
func HandleChange(inv Invalidator, observe func(op Op)) kafka.MessageHandler {
	logger := slog.Default().With("component", "resource-events")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ChangeEvent](value)
		if err != nil {
			logger.Error("failed to decode change event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if observe != nil {
			observe(event.Op)
		}
		if inv == nil {
			return nil
		}
		if err := inv.Invalidate(ctx); err != nil {
			return fmt.Errorf("invalidating cache after %s of %s: %w", event.Op, event.ResourceID, err)
		}
		logger.Info("search cache invalidated",
			"resource_id", event.ResourceID,
			"op", event.Op,
		)
		return nil
	}
}
