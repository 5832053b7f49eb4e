package query

import (
	"context"
	"errors"

	"github.com/Attaullahwazir/Payzenix/internal/alerts"
	"github.com/Attaullahwazir/Payzenix/internal/cqrs"
	"github.com/Attaullahwazir/Payzenix/internal/models"
	"github.com/Attaullahwazir/Payzenix/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ErrForbidden means the requester may not see the resource.
var ErrForbidden = errors.New("forbidden")

// TransactionReader is the read side the query service needs.
type TransactionReader interface {
	GetByID(ctx context.Context, id string) (*models.TransactionView, error)
	ListByUser(ctx context.Context, userID string, page repository.Page) ([]models.TransactionView, int, error)
	StatsByUser(ctx context.Context, userID string) (*models.UserStats, error)
}

// AlertLister reads the fraud alert feed.
type AlertLister interface {
	List(ctx context.Context, limit int) ([]alerts.Alert, error)
}

// PaymentQueryService serves transaction reads. Ownership is always checked
// before a single transaction is returned.
type PaymentQueryService struct {
	readRepo TransactionReader
	alerts   AlertLister
}

// NewPaymentQueryService builds the read side. alertFeed may be nil when the
// alert consumer is disabled.
func NewPaymentQueryService(readRepo TransactionReader, alertFeed AlertLister) *PaymentQueryService {
	return &PaymentQueryService{readRepo: readRepo, alerts: alertFeed}
}

// GetTransaction returns the transaction if the requester owns it or is an admin.
func (s *PaymentQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	view, err := s.readRepo.GetByID(ctx, q.TransactionID)
	if err != nil {
		return nil, err
	}
	if view.UserID != q.Requester.UserID && !q.Requester.IsAdmin() {
		return nil, ErrForbidden
	}
	return view, nil
}

// ListTransactions returns one page of the user's history, newest first.
func (s *PaymentQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	views, total, err := s.readRepo.ListByUser(ctx, q.UserID, repository.Page{Number: page, Size: size})
	if err != nil {
		return nil, err
	}
	return &models.TransactionPage{Transactions: views, Page: page, PageSize: size, Total: total}, nil
}

func (s *PaymentQueryService) GetStats(ctx context.Context, q cqrs.GetStatsQuery) (*models.UserStats, error) {
	return s.readRepo.StatsByUser(ctx, q.UserID)
}

// ListFraudAlerts is restricted to admins.
func (s *PaymentQueryService) ListFraudAlerts(ctx context.Context, q cqrs.ListFraudAlertsQuery) ([]alerts.Alert, error) {
	if !q.Requester.IsAdmin() {
		return nil, ErrForbidden
	}
	if s.alerts == nil {
		return []alerts.Alert{}, nil
	}
	return s.alerts.List(ctx, q.Limit)
}
