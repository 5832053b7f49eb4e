package fraud

import (
	"math"
	"time"

	"github.com/Attaullahwazir/Payzenix/internal/models"
)

// Policy holds the tunable weights and windows. Weights should sum to 1 so the
// raw score already sits in [0,1]; the scorer clamps regardless.
type Policy struct {
	VelocityWindow time.Duration
	// VelocityLimit is the attempt count within the window that saturates the velocity signal.
	VelocityLimit int
	// HighAmount saturates the amount signal for users without enough history,
	// and the windowed spend component of velocity.
	HighAmount float64
	// MinHistory is the number of prior payments needed before z-scores are trusted.
	MinHistory int
	// AnomalyZ is the z-score at which the anomaly signal saturates.
	AnomalyZ float64

	WeightVelocity float64
	WeightAmount   float64
	WeightNewCard  float64
	WeightNewIP    float64
}

func DefaultPolicy() Policy {
	return Policy{
		VelocityWindow: 5 * time.Minute,
		VelocityLimit:  5,
		HighAmount:     5000,
		MinHistory:     3,
		AnomalyZ:       4,
		WeightVelocity: 0.45,
		WeightAmount:   0.45,
		WeightNewCard:  0.05,
		WeightNewIP:    0.05,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.VelocityWindow <= 0 {
		p.VelocityWindow = d.VelocityWindow
	}
	if p.VelocityLimit <= 0 {
		p.VelocityLimit = d.VelocityLimit
	}
	if p.HighAmount <= 0 {
		p.HighAmount = d.HighAmount
	}
	if p.MinHistory <= 0 {
		p.MinHistory = d.MinHistory
	}
	if p.AnomalyZ <= 0 {
		p.AnomalyZ = d.AnomalyZ
	}
	if p.WeightVelocity == 0 && p.WeightAmount == 0 && p.WeightNewCard == 0 && p.WeightNewIP == 0 {
		p.WeightVelocity = d.WeightVelocity
		p.WeightAmount = d.WeightAmount
		p.WeightNewCard = d.WeightNewCard
		p.WeightNewIP = d.WeightNewIP
	}
	return p
}

// velocity blends attempt count and windowed spend; the larger wins.
func (p Policy) velocity(recent []models.TransactionView) float64 {
	var sum float64
	for _, t := range recent {
		sum += t.Amount.InexactFloat64()
	}
	byCount := float64(len(recent)) / float64(p.VelocityLimit)
	bySpend := sum / p.HighAmount
	return clamp(math.Max(byCount, bySpend))
}

// anomaly measures how far amount sits above the user's usual spend. Amounts
// below the mean are never suspicious on this axis.
func (p Policy) anomaly(amount float64, profile models.AmountProfile) float64 {
	if profile.Count < p.MinHistory {
		return clamp(amount / p.HighAmount)
	}
	spread := math.Max(profile.StdDev, math.Max(profile.Mean*0.25, 1))
	z := (amount - profile.Mean) / spread
	return clamp(z / p.AnomalyZ)
}
