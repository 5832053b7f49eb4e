package cqrs

import "github.com/Attaullahwazir/Payzenix/internal/models"

// GetTransactionQuery fetches a single transaction, subject to ownership check.
type GetTransactionQuery struct {
	TransactionID string
	Requester     models.Principal
}

// ListTransactionsQuery fetches one page of a user's transactions.
type ListTransactionsQuery struct {
	UserID   string
	Page     int
	PageSize int
}

// GetStatsQuery fetches the analytics summary for a user.
type GetStatsQuery struct {
	UserID string
}

// ListFraudAlertsQuery fetches the most recent fraud alerts. Admins only.
type ListFraudAlertsQuery struct {
	Requester models.Principal
	Limit     int
}
