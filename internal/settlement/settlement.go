// Package settlement simulates the external network a real gateway would
// settle against. Success is deterministic except for reserved test cards.
package settlement

import (
	"context"
	"errors"

	"github.com/Attaullahwazir/Payzenix/internal/utils"
	"github.com/shopspring/decimal"
)

// ErrDeclined means the simulated issuer refused the payment.
var ErrDeclined = errors.New("declined by issuer")

// DefaultDeclineCards always fail settlement. They pass Luhn so they reach this stage.
var DefaultDeclineCards = []string{
	"4000000000000002",
	"4000000000009995",
}

// Request is what the simulated network sees. CardNumber is plaintext and must
// never be logged.
type Request struct {
	TransactionID string
	CardNumber    string
	Amount        decimal.Decimal
	Currency      string
}

// Settler finalizes a payment and returns the external reference.
type Settler interface {
	Settle(ctx context.Context, req Request) (string, error)
}

// Simulator is the in-process Settler.
type Simulator struct {
	declined map[string]struct{}
}

func NewSimulator(declineCards []string) *Simulator {
	declined := make(map[string]struct{}, len(declineCards))
	for _, c := range declineCards {
		declined[c] = struct{}{}
	}
	return &Simulator{declined: declined}
}

func (s *Simulator) Settle(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, ok := s.declined[req.CardNumber]; ok {
		return "", ErrDeclined
	}
	return utils.GenerateReference("BANK", 12), nil
}
