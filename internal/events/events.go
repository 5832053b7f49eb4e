package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	PaymentProcessed = "payment.processed"
)

// Stream names. Kafka uses them as topic names.
const (
	PaymentEventsStream = "payment.events"
)

// Event is the envelope every backend carries. Data is decoded by the handler
// that knows the event type.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent builds an envelope around data.
func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Data: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", e.Type, err)
	}
	return nil
}

func decodeEnvelope(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

// Publisher emits domain events. Publishing is best effort: callers log failures.
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// Handler processes one event. A non-nil error leaves the event unacknowledged.
type Handler func(ctx context.Context, event Event) error

// Subscriber consumes a stream until ctx is cancelled.
type Subscriber interface {
	Start(ctx context.Context) error
}

// keyed lets payloads choose their Kafka partition key.
type keyed interface {
	PartitionKey() string
}

// Payment events

// PaymentProcessedEvent is emitted once per stored transaction. It never
// carries card data or the fraud score.
type PaymentProcessedEvent struct {
	TransactionID string          `json:"transactionId"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	ProcessedAt   *time.Time      `json:"processedTimestamp,omitempty"`
}

// PartitionKey keeps one user's events in order on a single partition.
func (e PaymentProcessedEvent) PartitionKey() string {
	return e.UserID
}
