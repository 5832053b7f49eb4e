package alerts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Attaullahwazir/Payzenix/internal/events"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func newTestConsumer(t *testing.T, capacity int) (*Consumer, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewStore(client, capacity)
	return NewConsumer(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func paymentEvent(t *testing.T, id, status string) events.Event {
	t.Helper()
	event, err := events.NewEvent(events.PaymentProcessed, events.PaymentProcessedEvent{
		TransactionID: id,
		UserID:        "usr-001",
		Amount:        decimal.RequireFromString("5000.00"),
		Currency:      "USD",
		Status:        status,
		CreatedAt:     time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	return event
}

func TestConsumerRecordsOnlyFraud(t *testing.T) {
	consumer, store := newTestConsumer(t, 10)
	ctx := context.Background()

	for _, e := range []events.Event{
		paymentEvent(t, "txn_ok", "SUCCESS"),
		paymentEvent(t, "txn_failed", "FAILED"),
		paymentEvent(t, "txn_fraud", "FRAUD"),
		{Type: "something.else", Data: []byte(`{}`)},
	} {
		if err := consumer.Handle(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].TransactionID != "txn_fraud" {
		t.Fatalf("expected only the fraud alert, got %+v", list)
	}
	if list[0].RecordedAt.IsZero() {
		t.Error("expected recorded timestamp")
	}
}

func TestConsumerIsIdempotent(t *testing.T) {
	consumer, store := newTestConsumer(t, 10)
	ctx := context.Background()
	event := paymentEvent(t, "txn_fraud", "FRAUD")

	for i := 0; i < 3; i++ {
		if err := consumer.Handle(ctx, event); err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i, err)
		}
	}

	list, _ := store.List(ctx, 0)
	if len(list) != 1 {
		t.Errorf("expected redeliveries to be ignored, got %d alerts", len(list))
	}
}

func TestStoreCapsFeedNewestFirst(t *testing.T) {
	consumer, store := newTestConsumer(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := consumer.Handle(ctx, paymentEvent(t, fmt.Sprintf("txn_%d", i), "FRAUD")); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected feed capped at 3, got %d", len(list))
	}
	for i, want := range []string{"txn_4", "txn_3", "txn_2"} {
		if list[i].TransactionID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, list[i].TransactionID)
		}
	}

	limited, _ := store.List(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestConsumerRejectsMalformedPayload(t *testing.T) {
	consumer, _ := newTestConsumer(t, 10)
	err := consumer.Handle(context.Background(), events.Event{Type: events.PaymentProcessed, Data: []byte(`"nope"`)})
	if err == nil {
		t.Error("expected malformed payload to be left for redelivery")
	}
}
