package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Attaullahwazir/Payzenix/internal/cqrs"
	"github.com/Attaullahwazir/Payzenix/internal/events"
	"github.com/Attaullahwazir/Payzenix/internal/metrics"
	"github.com/Attaullahwazir/Payzenix/internal/models"
	"github.com/Attaullahwazir/Payzenix/internal/payment"
	"github.com/Attaullahwazir/Payzenix/internal/ratelimit"
	"github.com/Attaullahwazir/Payzenix/internal/validation"
)

// PaymentProcessor runs the payment pipeline.
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, req payment.Request) (*payment.Result, error)
}

// ViewCacher warms the read model after a write.
type ViewCacher interface {
	CacheTransactionView(ctx context.Context, view *models.TransactionView)
}

// PaymentCommandService admits attempts through the rate limiter, runs them and
// then fans the stored transaction out to the read cache and the event stream.
type PaymentCommandService struct {
	processor PaymentProcessor
	limiter   ratelimit.Limiter
	cache     ViewCacher
	publisher events.Publisher
	stream    string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Options holds the optional collaborators. Nil fields are skipped.
type Options struct {
	Cache     ViewCacher
	Publisher events.Publisher
	Stream    string
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func NewPaymentCommandService(processor PaymentProcessor, limiter ratelimit.Limiter, opts Options) *PaymentCommandService {
	if opts.Stream == "" {
		opts.Stream = events.PaymentEventsStream
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PaymentCommandService{
		processor: processor,
		limiter:   limiter,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		stream:    opts.Stream,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "payment_commands"),
	}
}

func (s *PaymentCommandService) ProcessPayment(ctx context.Context, cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) {
	allowed, err := s.limiter.Allow(ctx, cmd.UserID)
	if err != nil {
		s.logger.Error("rate limiter unavailable", "user_id", cmd.UserID, "error", err)
		s.metrics.PaymentRejected("limiter_unavailable")
		return nil, fmt.Errorf("%w: %w", payment.ErrProcessing, err)
	}
	if !allowed {
		s.logger.Warn("payment attempt rate limited", "user_id", cmd.UserID)
		s.metrics.PaymentRejected("rate_limited")
		return nil, payment.ErrRateLimited
	}

	result, err := s.processor.ProcessPayment(ctx, payment.Request{
		UserID: cmd.UserID,
		Input: validation.Input{
			CardNumber:     cmd.CardNumber,
			CVV:            cmd.CVV,
			ExpiryDate:     cmd.ExpiryDate,
			Amount:         cmd.Amount,
			CardholderName: cmd.CardholderName,
			Currency:       cmd.Currency,
		},
		IPAddress: cmd.IPAddress,
		UserAgent: cmd.UserAgent,
	})
	if err != nil {
		if errors.Is(err, payment.ErrValidation) {
			s.metrics.PaymentRejected("validation")
		} else {
			s.metrics.PaymentRejected("processing")
		}
		return nil, err
	}

	tx := result.Transaction
	s.metrics.PaymentProcessed(tx.Status.String(), tx.FraudScore)
	if s.cache != nil {
		s.cache.CacheTransactionView(ctx, tx.ToView())
	}
	s.publish(ctx, tx)
	return result, nil
}

func (s *PaymentCommandService) publish(ctx context.Context, tx *models.Transaction) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, s.stream, events.PaymentProcessed, events.PaymentProcessedEvent{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Status:        tx.Status.String(),
		CreatedAt:     tx.CreatedAt,
		ProcessedAt:   tx.ProcessedAt,
	})
	if err != nil {
		s.metrics.EventPublishFailed()
		s.logger.Error("failed to publish payment.processed event", "transaction_id", tx.ID, "error", err)
	}
}
