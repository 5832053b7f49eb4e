// Package fraud scores payment attempts. The score is advisory: it blends
// velocity, amount anomaly and novelty signals read from transaction history,
// and the caller decides what a score means.
package fraud

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Attaullahwazir/Payzenix/internal/models"
	"github.com/shopspring/decimal"
)

const (
	FactorVelocity = "velocity"
	FactorAmount   = "amount_anomaly"
	FactorNewCard  = "new_card"
	FactorNewIP    = "new_ip"
)

var factorOrder = []string{FactorVelocity, FactorAmount, FactorNewCard, FactorNewIP}

// DefaultThreshold is the score at or above which a payment is treated as fraud.
const DefaultThreshold = 0.8

// History is the read side the scorer needs from the transaction store.
type History interface {
	RecentByUser(ctx context.Context, userID string, since time.Time) ([]models.TransactionView, error)
	AmountProfile(ctx context.Context, userID string) (models.AmountProfile, error)
	HasUsedCard(ctx context.Context, userID, fingerprint string) (bool, error)
	HasUsedIP(ctx context.Context, userID, ip string) (bool, error)
}

// Candidate is a validated payment attempt about to be decided.
type Candidate struct {
	UserID          string
	Amount          decimal.Decimal
	CardFingerprint string
	IPAddress       string
	At              time.Time
}

// Assessment is the scorer's output. Factors hold each signal's weighted
// contribution and are for audit logs only.
type Assessment struct {
	Score   float64
	Factors map[string]float64
}

// Scorer computes risk scores against live history.
type Scorer struct {
	history History
	policy  Policy
}

func NewScorer(history History, policy Policy) *Scorer {
	return &Scorer{history: history, policy: policy.withDefaults()}
}

// Policy returns the effective policy.
func (s *Scorer) Policy() Policy {
	return s.policy
}

// Score is deterministic for a given history snapshot.
func (s *Scorer) Score(ctx context.Context, c Candidate) (Assessment, error) {
	p := s.policy
	amount := c.Amount.InexactFloat64()

	recent, err := s.history.RecentByUser(ctx, c.UserID, c.At.Add(-p.VelocityWindow))
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to load recent activity: %w", err)
	}
	profile, err := s.history.AmountProfile(ctx, c.UserID)
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to load amount profile: %w", err)
	}

	newCard := false
	if c.CardFingerprint != "" {
		seen, err := s.history.HasUsedCard(ctx, c.UserID, c.CardFingerprint)
		if err != nil {
			return Assessment{}, fmt.Errorf("failed to check card history: %w", err)
		}
		newCard = !seen
	}
	newIP := false
	if c.IPAddress != "" {
		seen, err := s.history.HasUsedIP(ctx, c.UserID, c.IPAddress)
		if err != nil {
			return Assessment{}, fmt.Errorf("failed to check ip history: %w", err)
		}
		newIP = !seen
	}

	factors := map[string]float64{
		FactorVelocity: p.WeightVelocity * p.velocity(recent),
		FactorAmount:   p.WeightAmount * p.anomaly(amount, profile),
		FactorNewCard:  p.WeightNewCard * boolScore(newCard),
		FactorNewIP:    p.WeightNewIP * boolScore(newIP),
	}

	score := 0.0
	for _, name := range factorOrder {
		score += factors[name]
	}
	return Assessment{Score: clamp(score), Factors: factors}, nil
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Max(0, math.Min(1, v))
}
