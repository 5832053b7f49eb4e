package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to the topic named after the stream.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	msg, err := kafkaMessage(stream, eventType, data)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func kafkaMessage(topic, eventType string, data any) (kafka.Message, error) {
	event, err := NewEvent(eventType, data)
	if err != nil {
		return kafka.Message{}, err
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}
	if k, ok := data.(keyed); ok {
		msg.Key = []byte(k.PartitionKey())
	}
	return msg, nil
}

// KafkaSubscriber consumes a topic as part of a consumer group. Offsets are
// committed only after the handler succeeds.
type KafkaSubscriber struct {
	reader  *kafka.Reader
	handler Handler
	logger  *slog.Logger
}

func NewKafkaSubscriber(brokers []string, config SubscriberConfig) *KafkaSubscriber {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &KafkaSubscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  config.Group,
			Topic:    config.Stream,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}),
		handler: config.Handler,
		logger:  config.Logger.With("component", "kafka_subscriber", "topic", config.Stream, "group", config.Group),
	}
}

func (s *KafkaSubscriber) Start(ctx context.Context) error {
	defer s.reader.Close()
	s.logger.Info("subscriber started")

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				s.logger.Info("subscriber stopping")
				return ctx.Err()
			}
			s.logger.Error("failed to fetch message", "error", err)
			sleep(ctx, time.Second)
			continue
		}

		event, err := decodeEnvelope(msg.Value)
		if err == nil {
			err = s.handler(ctx, event)
		}
		if err != nil {
			s.logger.Warn("failed to process message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Warn("failed to commit message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}
