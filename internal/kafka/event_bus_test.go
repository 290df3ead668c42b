package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newFakeBus() (*EventBus, map[string]*fakeWriter) {
	fakes := map[string]*fakeWriter{}
	writers := map[string]messageWriter{}
	for _, topic := range []string{TopicOrderCreated, TopicOrderPaid, TopicOrderStatusChanged, TopicReconciliationRequired} {
		fakes[topic] = &fakeWriter{}
		writers[topic] = fakes[topic]
	}
	return newEventBusWithWriters(writers), fakes
}

func TestEventBusRoutesEventsToTopics(t *testing.T) {
	bus, fakes := newFakeBus()
	ctx := context.Background()
	now := time.Now().UTC()

	paid := domain.OrderEvent{OrderID: "order-1", PaymentID: "pay_1", Total: decimal.NewFromInt(950), OccurredAt: now}
	if err := bus.PublishOrderPaid(ctx, paid); err != nil {
		t.Fatalf("PublishOrderPaid() failed: %v", err)
	}
	if err := bus.PublishReconciliationRequired(ctx, domain.ReconciliationRequired{IntentID: "order_X", Reason: "stock"}); err != nil {
		t.Fatalf("PublishReconciliationRequired() failed: %v", err)
	}

	msgs := fakes[TopicOrderPaid].messages
	if len(msgs) != 1 {
		t.Fatalf("expected 1 order.paid message, got %d", len(msgs))
	}
	if string(msgs[0].Key) != "order-1" {
		t.Errorf("expected key order-1, got %s", msgs[0].Key)
	}

	var decoded domain.OrderEvent
	if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.PaymentID != "pay_1" || !decoded.Total.Equal(paid.Total) {
		t.Errorf("unexpected payload %+v", decoded)
	}

	recon := fakes[TopicReconciliationRequired].messages
	if len(recon) != 1 || string(recon[0].Key) != "order_X" {
		t.Errorf("expected reconciliation event keyed by intent, got %v", recon)
	}
	if len(fakes[TopicOrderCreated].messages) != 0 {
		t.Error("expected nothing on order.created")
	}
}

func TestEventBusWrapsWriterErrors(t *testing.T) {
	bus, fakes := newFakeBus()
	boom := errors.New("broker down")
	fakes[TopicOrderCreated].err = boom

	err := bus.PublishOrderCreated(context.Background(), domain.OrderEvent{OrderID: "order-1"})
	if !errors.Is(err, boom) {
		t.Errorf("expected broker error, got %v", err)
	}
}

func TestEventBusClose(t *testing.T) {
	bus, fakes := newFakeBus()

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	for topic, f := range fakes {
		if !f.closed {
			t.Errorf("writer for %s not closed", topic)
		}
	}
}

func TestClientEnabled(t *testing.T) {
	if NewClient(nil).Enabled() {
		t.Error("expected client without brokers to be disabled")
	}

	client := NewClient([]string{"kafka:9092"})
	if !client.Enabled() {
		t.Error("expected client with brokers to be enabled")
	}

	w := client.NewWriter(TopicOrderPaid)
	if w.Topic != TopicOrderPaid || w.RequiredAcks != kafkago.RequireOne {
		t.Errorf("unexpected writer config %+v", w)
	}
}
