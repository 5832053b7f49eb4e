package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultBatchSize = 10
	defaultBlock     = 5 * time.Second
	defaultClaimIdle = time.Minute
)

// SubscriberConfig is shared by the Redis Streams and Kafka subscribers.
// Group names the consumer group; Stream is the stream or topic name.
type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// ClaimIdle is how long a delivered but unacknowledged entry may sit with
	// another consumer before this one takes it over. Redis only.
	ClaimIdle time.Duration
	Logger    *slog.Logger
}

// RedisSubscriber reads payment events through a Redis consumer group.
// Entries are acknowledged only after the handler succeeds; failed entries
// stay pending and are reclaimed once idle, so handlers must be idempotent.
type RedisSubscriber struct {
	client *redis.Client
	cfg    SubscriberConfig
	logger *slog.Logger
}

func NewRedisSubscriber(client *redis.Client, config SubscriberConfig) *RedisSubscriber {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.BlockDuration <= 0 {
		config.BlockDuration = defaultBlock
	}
	if config.ClaimIdle <= 0 {
		config.ClaimIdle = defaultClaimIdle
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RedisSubscriber{
		client: client,
		cfg:    config,
		logger: config.Logger.With("component", "redis_subscriber",
			"stream", config.Stream, "group", config.Group, "consumer", config.Consumer),
	}
}

// Start blocks until ctx is cancelled.
func (s *RedisSubscriber) Start(ctx context.Context) error {
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}
	s.logger.Info("subscriber started")

	for ctx.Err() == nil {
		if err := s.reclaim(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("failed to reclaim pending entries", "error", err)
		}
		if err := s.poll(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("failed to read entries", "error", err)
			sleep(ctx, time.Second)
		}
	}

	s.logger.Info("subscriber stopping")
	return ctx.Err()
}

func (s *RedisSubscriber) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// poll waits up to BlockDuration for new entries.
func (s *RedisSubscriber) poll(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    s.cfg.BatchSize,
		Block:    s.cfg.BlockDuration,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		s.handleAll(ctx, stream.Messages)
	}
	return nil
}

// reclaim takes over entries left pending by a failed handler or a dead consumer.
func (s *RedisSubscriber) reclaim(ctx context.Context) error {
	entries, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.cfg.Stream,
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		MinIdle:  s.cfg.ClaimIdle,
		Start:    "0-0",
		Count:    s.cfg.BatchSize,
	}).Result()
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		s.logger.Info("reclaimed pending entries", "count", len(entries))
	}
	s.handleAll(ctx, entries)
	return nil
}

func (s *RedisSubscriber) handleAll(ctx context.Context, entries []redis.XMessage) {
	for _, entry := range entries {
		if err := s.handle(ctx, entry); err != nil {
			s.logger.Warn("failed to handle entry", "message_id", entry.ID, "error", err)
			continue
		}
		if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, entry.ID).Err(); err != nil {
			s.logger.Warn("failed to ack entry", "message_id", entry.ID, "error", err)
		}
	}
}

func (s *RedisSubscriber) handle(ctx context.Context, entry redis.XMessage) error {
	raw, ok := entry.Values["event"].(string)
	if !ok {
		return fmt.Errorf("entry has no event field")
	}
	event, err := decodeEnvelope([]byte(raw))
	if err != nil {
		return err
	}
	return s.cfg.Handler(ctx, event)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
