package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// EventBus publishes order lifecycle events, one writer per topic. Messages
// are keyed by order id so each order's events stay ordered.
type EventBus struct {
	writers map[string]messageWriter
}

// NewEventBus opens a writer for every order topic.
func NewEventBus(client *Client) *EventBus {
	writers := make(map[string]messageWriter, 4)
	for _, topic := range []string{
		TopicOrderCreated,
		TopicOrderPaid,
		TopicOrderStatusChanged,
		TopicReconciliationRequired,
	} {
		writers[topic] = client.NewWriter(topic)
	}
	return &EventBus{writers: writers}
}

func newEventBusWithWriters(writers map[string]messageWriter) *EventBus {
	return &EventBus{writers: writers}
}

func (b *EventBus) publish(ctx context.Context, topic, key string, payload any) error {
	writer, ok := b.writers[topic]
	if !ok {
		return fmt.Errorf("no writer for topic %s", topic)
	}
	if err := PublishJSON(ctx, writer, key, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (b *EventBus) PublishOrderCreated(ctx context.Context, event domain.OrderEvent) error {
	return b.publish(ctx, TopicOrderCreated, event.OrderID, event)
}

func (b *EventBus) PublishOrderPaid(ctx context.Context, event domain.OrderEvent) error {
	return b.publish(ctx, TopicOrderPaid, event.OrderID, event)
}

func (b *EventBus) PublishOrderStatusChanged(ctx context.Context, event domain.StatusChanged) error {
	return b.publish(ctx, TopicOrderStatusChanged, event.OrderID, event)
}

// PublishReconciliationRequired keys by intent id because the order may not
// exist yet.
func (b *EventBus) PublishReconciliationRequired(ctx context.Context, event domain.ReconciliationRequired) error {
	return b.publish(ctx, TopicReconciliationRequired, event.IntentID, event)
}

// Close flushes and closes every writer.
func (b *EventBus) Close() error {
	var errs []error
	for topic, w := range b.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s writer: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}
