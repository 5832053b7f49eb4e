// Package payment runs a single payment attempt end to end: validation,
// card protection, risk scoring, settlement and persistence.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Attaullahwazir/Payzenix/internal/cipher"
	"github.com/Attaullahwazir/Payzenix/internal/fraud"
	"github.com/Attaullahwazir/Payzenix/internal/models"
	"github.com/Attaullahwazir/Payzenix/internal/settlement"
	"github.com/Attaullahwazir/Payzenix/internal/utils"
	"github.com/Attaullahwazir/Payzenix/internal/validation"
)

const DefaultOperationTimeout = 10 * time.Second

// Sealer protects card data before it is stored.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Fingerprint(cardNumber string) string
}

// Scorer rates a validated attempt.
type Scorer interface {
	Score(ctx context.Context, c fraud.Candidate) (fraud.Assessment, error)
}

// Store persists a transaction in its final state.
type Store interface {
	Create(ctx context.Context, tx *models.Transaction) error
}

// Config holds orchestrator tuning. Zero values fall back to defaults.
type Config struct {
	FraudThreshold   float64
	OperationTimeout time.Duration
	Now              func() time.Time
}

// Request is one payment attempt as submitted by an authenticated user.
type Request struct {
	UserID    string
	Input     validation.Input
	IPAddress string
	UserAgent string
}

// Result is the outcome of an attempt that produced a stored transaction.
// Decline is nil for SUCCESS and explains FRAUD or FAILED otherwise.
type Result struct {
	Transaction *models.Transaction
	Decline     error
}

// Success reports whether the payment settled.
func (r *Result) Success() bool {
	return r != nil && r.Transaction != nil && r.Transaction.Status == models.StatusSuccess
}

// Orchestrator composes the pipeline. It holds no mutable state and is safe
// for concurrent use.
type Orchestrator struct {
	cfg     Config
	sealer  Sealer
	scorer  Scorer
	settler settlement.Settler
	store   Store
	logger  *slog.Logger
}

func NewOrchestrator(cfg Config, sealer Sealer, scorer Scorer, settler settlement.Settler, store Store, logger *slog.Logger) *Orchestrator {
	if cfg.FraudThreshold <= 0 {
		cfg.FraudThreshold = fraud.DefaultThreshold
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:     cfg,
		sealer:  sealer,
		scorer:  scorer,
		settler: settler,
		store:   store,
		logger:  logger.With("component", "payment_orchestrator"),
	}
}

// ProcessPayment validates, scores, settles and stores one attempt. A non-nil
// error means no transaction was stored: either a *ValidationError or
// ErrProcessing. Declines are not errors; they come back in Result.Decline.
func (o *Orchestrator) ProcessPayment(ctx context.Context, req Request) (*Result, error) {
	now := o.cfg.Now().UTC()

	p, err := validation.Validate(req.Input, now)
	if err != nil {
		var fields validation.Errors
		if errors.As(err, &fields) {
			return nil, &ValidationError{Fields: fields}
		}
		return nil, &ValidationError{Fields: validation.Errors{{Field: "payment", Err: err}}}
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.OperationTimeout)
	defer cancel()

	id, err := utils.GenerateTransactionID()
	if err != nil {
		return nil, o.processingError(req.UserID, "", "id", err)
	}
	log := o.logger.With("transaction_id", id, "user_id", req.UserID)

	token, err := o.sealer.Encrypt(cipher.CardToken(p.CardNumber, p.ExpiryDate))
	if err != nil {
		return nil, o.processingError(req.UserID, id, "encrypt", err)
	}

	tx := &models.Transaction{
		ID:                 id,
		UserID:             req.UserID,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Status:             models.StatusPending,
		MaskedCardNumber:   cipher.MaskCardNumber(p.CardNumber),
		EncryptedCardToken: token,
		CardFingerprint:    o.sealer.Fingerprint(p.CardNumber),
		IPAddress:          req.IPAddress,
		UserAgent:          req.UserAgent,
		CreatedAt:          now,
	}

	assessment, err := o.scorer.Score(ctx, fraud.Candidate{
		UserID:          req.UserID,
		Amount:          p.Amount,
		CardFingerprint: tx.CardFingerprint,
		IPAddress:       req.IPAddress,
		At:              now,
	})
	if err != nil {
		return nil, o.processingError(req.UserID, id, "score", err)
	}
	tx.FraudScore = assessment.Score

	result := &Result{Transaction: tx}
	if assessment.Score >= o.cfg.FraudThreshold {
		tx.Status = models.StatusFraud
		result.Decline = ErrFraudBlocked
		log.Warn("payment flagged as fraud", "score", assessment.Score, "factors", assessment.Factors)
	} else {
		externalID, err := o.settler.Settle(ctx, settlement.Request{
			TransactionID: id,
			CardNumber:    p.CardNumber,
			Amount:        p.Amount,
			Currency:      p.Currency,
		})
		processedAt := o.cfg.Now().UTC()
		switch {
		case err == nil:
			tx.Status = models.StatusSuccess
			tx.ExternalTransactionID = externalID
			tx.ProcessedAt = &processedAt
		case errors.Is(err, settlement.ErrDeclined):
			tx.Status = models.StatusFailed
			tx.ProcessedAt = &processedAt
			result.Decline = ErrSettlementFailed
			log.Info("payment declined by settlement")
		default:
			return nil, o.processingError(req.UserID, id, "settle", err)
		}
	}

	if err := o.store.Create(ctx, tx); err != nil {
		return nil, o.processingError(req.UserID, id, "persist", err)
	}

	log.Info("payment processed", "status", tx.Status, "amount", tx.Amount.StringFixed(2), "currency", tx.Currency)
	return result, nil
}

func (o *Orchestrator) processingError(userID, txID, stage string, err error) error {
	o.logger.Error("payment processing failed",
		"transaction_id", txID, "user_id", userID, "stage", stage, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrProcessing, stage, err)
}
