package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Principal is the authenticated caller attached to every request by the auth boundary.
type Principal struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

const (
	RoleCustomer = "customer"
	RoleMerchant = "merchant"
	RoleAdmin    = "admin"
)

// IsAdmin reports whether the principal may read other users' records.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Transaction is the write model. One record exists per payment attempt that
// passed validation; only Status, ProcessedAt and ExternalTransactionID are set
// after the fact, and only once.
type Transaction struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"userId"`
	Amount                decimal.Decimal   `json:"amount"`
	Currency              string            `json:"currency"`
	Status                TransactionStatus `json:"status"`
	MaskedCardNumber      string            `json:"maskedCardNumber"`
	EncryptedCardToken    string            `json:"-"`
	CardFingerprint       string            `json:"-"`
	FraudScore            float64           `json:"-"`
	IPAddress             string            `json:"-"`
	UserAgent             string            `json:"-"`
	CreatedAt             time.Time         `json:"createdTimestamp"`
	ProcessedAt           *time.Time        `json:"processedTimestamp,omitempty"`
	ExternalTransactionID string            `json:"externalTransactionId,omitempty"`
}

// AmountProfile summarises a user's historical amounts for anomaly scoring.
type AmountProfile struct {
	Count  int
	Mean   float64
	StdDev float64
}

// UserStats is the per-user analytics summary.
type UserStats struct {
	TotalTransactions int             `json:"totalTransactions"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	SuccessfulCount   int             `json:"successfulCount"`
	FailedCount       int             `json:"failedCount"`
	FraudCount        int             `json:"fraudCount"`
	PendingCount      int             `json:"pendingCount"`
}
