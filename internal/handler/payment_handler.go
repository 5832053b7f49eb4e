package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Attaullahwazir/Payzenix/internal/alerts"
	"github.com/Attaullahwazir/Payzenix/internal/cqrs"
	"github.com/Attaullahwazir/Payzenix/internal/middleware"
	"github.com/Attaullahwazir/Payzenix/internal/models"
	"github.com/Attaullahwazir/Payzenix/internal/payment"
	"github.com/Attaullahwazir/Payzenix/internal/query"
	"github.com/Attaullahwazir/Payzenix/internal/repository"
	"github.com/Attaullahwazir/Payzenix/internal/utils"
	"github.com/Attaullahwazir/Payzenix/internal/validation"
	"github.com/gin-gonic/gin"
)

const defaultAlertLimit = 50

// PaymentCommander defines the write-side operations used by PaymentHandler.
type PaymentCommander interface {
	ProcessPayment(context.Context, cqrs.ProcessPaymentCommand) (*payment.Result, error)
}

// PaymentQuerier defines the read-side operations used by PaymentHandler.
type PaymentQuerier interface {
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.TransactionView, error)
	ListTransactions(context.Context, cqrs.ListTransactionsQuery) (*models.TransactionPage, error)
	GetStats(context.Context, cqrs.GetStatsQuery) (*models.UserStats, error)
	ListFraudAlerts(context.Context, cqrs.ListFraudAlertsQuery) ([]alerts.Alert, error)
}

type PaymentHandler struct {
	commands PaymentCommander
	queries  PaymentQuerier
}

type ProcessPaymentRequest struct {
	CardNumber     string `json:"cardNumber" validate:"required"`
	CVV            string `json:"cvv" validate:"required"`
	ExpiryDate     string `json:"expiryDate" validate:"required"`
	Amount         string `json:"amount" validate:"required"`
	CardholderName string `json:"cardholderName" validate:"required"`
	Currency       string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type PaymentResponse struct {
	Success          bool   `json:"success"`
	TransactionID    string `json:"transactionId"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency,omitempty"`
	Status           string `json:"status"`
	MaskedCardNumber string `json:"maskedCardNumber,omitempty"`
	Error            string `json:"error,omitempty"`
}

type ListFraudAlertsResponse struct {
	Alerts []alerts.Alert `json:"alerts"`
}

func NewPaymentHandler(commands PaymentCommander, queries PaymentQuerier) *PaymentHandler {
	return &PaymentHandler{commands: commands, queries: queries}
}

func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		middleware.RespondWithError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.commands.ProcessPayment(c.Request.Context(), cqrs.ProcessPaymentCommand{
		UserID:         principal.UserID,
		CardNumber:     req.CardNumber,
		CVV:            req.CVV,
		ExpiryDate:     req.ExpiryDate,
		Amount:         req.Amount,
		CardholderName: req.CardholderName,
		Currency:       req.Currency,
		IPAddress:      c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
	})
	if err != nil {
		var verr *payment.ValidationError
		switch {
		case errors.As(err, &verr):
			middleware.RespondWithValidationError(c, validationDetails(verr.Fields))
		case errors.Is(err, payment.ErrRateLimited):
			middleware.RespondWithError(c, http.StatusTooManyRequests, "Too many payment attempts, please try again later")
		default:
			middleware.RespondWithError(c, http.StatusInternalServerError, "Payment could not be processed, please try again")
		}
		return
	}

	tx := result.Transaction
	if !result.Success() {
		c.JSON(http.StatusPaymentRequired, PaymentResponse{
			Success:       false,
			TransactionID: tx.ID,
			Amount:        tx.Amount.StringFixed(2),
			Status:        tx.Status.String(),
			Error:         "Payment declined",
		})
		return
	}

	c.JSON(http.StatusCreated, PaymentResponse{
		Success:          true,
		TransactionID:    tx.ID,
		Amount:           tx.Amount.StringFixed(2),
		Currency:         tx.Currency,
		Status:           tx.Status.String(),
		MaskedCardNumber: tx.MaskedCardNumber,
	})
}

func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	page, ok := intQuery(c, "page")
	if !ok {
		return
	}
	pageSize, ok := intQuery(c, "pageSize")
	if !ok {
		return
	}

	res, err := h.queries.ListTransactions(c.Request.Context(), cqrs.ListTransactionsQuery{
		UserID:   principal.UserID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)
	transactionID := c.Param("transactionId")
	if !utils.ValidateTransactionID(transactionID) {
		middleware.RespondWithError(c, http.StatusNotFound, "Transaction not found")
		return
	}

	view, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		TransactionID: transactionID,
		Requester:     principal,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			middleware.RespondWithError(c, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, query.ErrForbidden):
			middleware.RespondWithError(c, http.StatusForbidden, "You can only view your own transactions")
		default:
			middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to get transaction")
		}
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *PaymentHandler) GetStats(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	stats, err := h.queries.GetStats(c.Request.Context(), cqrs.GetStatsQuery{UserID: principal.UserID})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to get statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *PaymentHandler) ListFraudAlerts(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	if limit < 1 {
		limit = defaultAlertLimit
	}

	list, err := h.queries.ListFraudAlerts(c.Request.Context(), cqrs.ListFraudAlertsQuery{
		Requester: principal,
		Limit:     limit,
	})
	if err != nil {
		switch {
		case errors.Is(err, query.ErrForbidden):
			middleware.RespondWithError(c, http.StatusForbidden, "Admin role required")
		default:
			middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list fraud alerts")
		}
		return
	}

	c.JSON(http.StatusOK, ListFraudAlertsResponse{Alerts: list})
}

// intQuery reads an optional integer parameter. Absent means zero.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		middleware.RespondWithValidationError(c, []middleware.ValidationError{{
			Field:   name,
			Message: "Value must be a whole number",
			Type:    "integer",
		}})
		return 0, false
	}
	return n, true
}

func validationDetails(fields validation.Errors) []middleware.ValidationError {
	details := make([]middleware.ValidationError, 0, len(fields))
	for _, fe := range fields {
		details = append(details, middleware.ValidationError{
			Field:   fe.Field,
			Message: fe.Err.Error(),
			Type:    validationType(fe.Err),
		})
	}
	return details
}

func validationType(err error) string {
	switch {
	case errors.Is(err, validation.ErrInvalidCardNumber):
		return "card_number"
	case errors.Is(err, validation.ErrInvalidCVV):
		return "cvv"
	case errors.Is(err, validation.ErrInvalidExpiry):
		return "expired"
	case errors.Is(err, validation.ErrInvalidFormat):
		return "format"
	case errors.Is(err, validation.ErrInvalidAmount):
		return "amount"
	case errors.Is(err, validation.ErrInvalidName):
		return "name"
	case errors.Is(err, validation.ErrInvalidCurrency):
		return "currency"
	default:
		return "invalid"
	}
}
