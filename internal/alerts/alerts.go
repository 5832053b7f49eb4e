// Package alerts keeps a bounded feed of transactions flagged as fraud, built
// from payment.processed events.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Attaullahwazir/Payzenix/internal/events"
	"github.com/Attaullahwazir/Payzenix/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	feedKey         = "alerts:fraud"
	processedPrefix = "alerts:processed:"

	DefaultCapacity  = 1000
	DefaultMarkerTTL = 7 * 24 * time.Hour
)

// Alert is what reviewers see. It carries no card data.
type Alert struct {
	TransactionID string          `json:"transactionId"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	RecordedAt    time.Time       `json:"recordedTimestamp"`
}

// recordOnce pushes the alert only if the transaction has no processed marker,
// so redelivered events do not duplicate entries.
var recordOnce = redis.NewScript(`
if redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[2]) then
  redis.call('LPUSH', KEYS[2], ARGV[1])
  redis.call('LTRIM', KEYS[2], 0, tonumber(ARGV[3]) - 1)
  return 1
end
return 0
`)

// Store is the Redis-backed alert feed.
type Store struct {
	client    *redis.Client
	capacity  int
	markerTTL time.Duration
}

func NewStore(client *redis.Client, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{client: client, capacity: capacity, markerTTL: DefaultMarkerTTL}
}

// Record stores the alert once per transaction and reports whether it was new.
func (s *Store) Record(ctx context.Context, a Alert) (bool, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("failed to marshal alert: %w", err)
	}
	added, err := recordOnce.Run(ctx, s.client,
		[]string{processedPrefix + a.TransactionID, feedKey},
		payload, int(s.markerTTL.Seconds()), s.capacity,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to record alert: %w", err)
	}
	return added == 1, nil
}

// List returns up to limit alerts, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}
	raw, err := s.client.LRange(ctx, feedKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	out := make([]Alert, 0, len(raw))
	for _, item := range raw {
		var a Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			return nil, fmt.Errorf("failed to decode alert: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Consumer turns payment.processed events into alerts.
type Consumer struct {
	store  *Store
	now    func() time.Time
	logger *slog.Logger
}

func NewConsumer(store *Store, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{store: store, now: time.Now, logger: logger.With("component", "fraud_alerts")}
}

// Handle is an events.Handler. Events other than FRAUD payments are acknowledged and ignored.
func (c *Consumer) Handle(ctx context.Context, event events.Event) error {
	if event.Type != events.PaymentProcessed {
		return nil
	}
	var p events.PaymentProcessedEvent
	if err := event.Decode(&p); err != nil {
		return err
	}
	if p.Status != string(models.StatusFraud) {
		return nil
	}

	added, err := c.store.Record(ctx, Alert{
		TransactionID: p.TransactionID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		CreatedAt:     p.CreatedAt,
		RecordedAt:    c.now().UTC(),
	})
	if err != nil {
		return err
	}
	if added {
		c.logger.Warn("fraud alert recorded", "transaction_id", p.TransactionID, "user_id", p.UserID)
	} else {
		c.logger.Debug("duplicate fraud alert ignored", "transaction_id", p.TransactionID)
	}
	return nil
}
