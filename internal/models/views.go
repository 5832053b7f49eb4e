package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionView is the read-optimised projection of a transaction.
// It never carries the encrypted token, fingerprint or fraud score.
// UserID is populated for ownership checks but never serialised to the API response.
type TransactionView struct {
	ID               string            `json:"id"`
	UserID           string            `json:"-"`
	Amount           decimal.Decimal   `json:"amount"`
	Currency         string            `json:"currency"`
	Status           TransactionStatus `json:"status"`
	MaskedCardNumber string            `json:"maskedCardNumber"`
	CreatedAt        time.Time         `json:"createdTimestamp"`
	ProcessedAt      *time.Time        `json:"processedTimestamp,omitempty"`
}

// ToView projects the write model onto the read model.
func (t *Transaction) ToView() *TransactionView {
	return &TransactionView{
		ID:               t.ID,
		UserID:           t.UserID,
		Amount:           t.Amount,
		Currency:         t.Currency,
		Status:           t.Status,
		MaskedCardNumber: t.MaskedCardNumber,
		CreatedAt:        t.CreatedAt,
		ProcessedAt:      t.ProcessedAt,
	}
}

// TransactionPage is one page of a user's history, newest first.
type TransactionPage struct {
	Transactions []TransactionView `json:"transactions"`
	Page         int               `json:"page"`
	PageSize     int               `json:"pageSize"`
	Total        int               `json:"total"`
}
