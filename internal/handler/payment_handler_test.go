package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Attaullahwazir/Payzenix/internal/alerts"
	"github.com/Attaullahwazir/Payzenix/internal/cqrs"
	"github.com/Attaullahwazir/Payzenix/internal/middleware"
	"github.com/Attaullahwazir/Payzenix/internal/models"
	"github.com/Attaullahwazir/Payzenix/internal/payment"
	"github.com/Attaullahwazir/Payzenix/internal/query"
	"github.com/Attaullahwazir/Payzenix/internal/repository"
	"github.com/Attaullahwazir/Payzenix/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ---- mock implementations ----

type mockPaymentCommander struct {
	processFn func(cqrs.ProcessPaymentCommand) (*payment.Result, error)
}

func (m *mockPaymentCommander) ProcessPayment(ctx context.Context, cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) {
	if m.processFn != nil {
		return m.processFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockPaymentQuerier struct {
	getFn    func(cqrs.GetTransactionQuery) (*models.TransactionView, error)
	listFn   func(cqrs.ListTransactionsQuery) (*models.TransactionPage, error)
	statsFn  func(cqrs.GetStatsQuery) (*models.UserStats, error)
	alertsFn func(cqrs.ListFraudAlertsQuery) ([]alerts.Alert, error)
}

func (m *mockPaymentQuerier) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockPaymentQuerier) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockPaymentQuerier) GetStats(ctx context.Context, q cqrs.GetStatsQuery) (*models.UserStats, error) {
	if m.statsFn != nil {
		return m.statsFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockPaymentQuerier) ListFraudAlerts(ctx context.Context, q cqrs.ListFraudAlertsQuery) ([]alerts.Alert, error) {
	if m.alertsFn != nil {
		return m.alertsFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func fakeAuth(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetPrincipal(c, models.Principal{UserID: userID, Role: role})
		c.Next()
	}
}

func newTestRouter(cmds PaymentCommander, qrys PaymentQuerier, userID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(userID, role))
	h := NewPaymentHandler(cmds, qrys)
	v1 := r.Group("/v1/payments")
	v1.POST("", h.ProcessPayment)
	v1.GET("", h.ListTransactions)
	v1.GET("/stats", h.GetStats)
	v1.GET("/:transactionId", h.GetTransaction)
	r.GET("/v1/admin/fraud-alerts", h.ListFraudAlerts)
	return r
}

func doRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return body
}

// ---- test data ----

var testCreatedAt = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const (
	ownTxID     = "txn_019a0a1e-5c00-7000-8000-000000000001"
	otherTxID   = "txn_019a0a1e-5c00-7000-8000-000000000002"
	missingTxID = "txn_019a0a1e-5c00-7000-8000-000000000999"
)

func paymentBody() map[string]interface{} {
	return map[string]interface{}{
		"cardNumber":     "4111111111111111",
		"cvv":            "123",
		"expiryDate":     "12/26",
		"amount":         "99.99",
		"cardholderName": "Jane Doe",
	}
}

func resultWith(status models.TransactionStatus) *payment.Result {
	tx := &models.Transaction{
		ID:               "txn_001",
		UserID:           "usr-001",
		Amount:           decimal.RequireFromString("99.99"),
		Currency:         "USD",
		Status:           status,
		MaskedCardNumber: "************1111",
		FraudScore:       0.93,
		CreatedAt:        testCreatedAt,
	}
	res := &payment.Result{Transaction: tx}
	switch status {
	case models.StatusFraud:
		res.Decline = payment.ErrFraudBlocked
	case models.StatusFailed:
		res.Decline = payment.ErrSettlementFailed
	}
	return res
}

var testView = &models.TransactionView{
	ID: "txn_001", UserID: "usr-001",
	Amount: decimal.RequireFromString("99.99"), Currency: "USD",
	Status: models.StatusSuccess, MaskedCardNumber: "************1111",
	CreatedAt: testCreatedAt,
}

// ---- tests ----

func TestProcessPayment(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		processFn      func(cqrs.ProcessPaymentCommand) (*payment.Result, error)
		expectedStatus int
	}{
		{
			name:           "created - payment settled",
			body:           paymentBody(),
			processFn:      func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) { return resultWith(models.StatusSuccess), nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "payment required - blocked as fraud",
			body:           paymentBody(),
			processFn:      func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) { return resultWith(models.StatusFraud), nil },
			expectedStatus: http.StatusPaymentRequired,
		},
		{
			name:           "payment required - declined in settlement",
			body:           paymentBody(),
			processFn:      func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) { return resultWith(models.StatusFailed), nil },
			expectedStatus: http.StatusPaymentRequired,
		},
		{
			name: "bad request - field validation",
			body: paymentBody(),
			processFn: func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) {
				return nil, &payment.ValidationError{Fields: validation.Errors{{Field: "cardNumber", Err: validation.ErrInvalidCardNumber}}}
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "too many requests - rate limited",
			body:           paymentBody(),
			processFn:      func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) { return nil, payment.ErrRateLimited },
			expectedStatus: http.StatusTooManyRequests,
		},
		{
			name: "internal error - processing failed",
			body: paymentBody(),
			processFn: func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) {
				return nil, fmt.Errorf("%w: encrypt: boom", payment.ErrProcessing)
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "bad request - missing required fields",
			body:           map[string]interface{}{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - amount sent as a number",
			body:           map[string]interface{}{"cardNumber": "4111111111111111", "cvv": "123", "expiryDate": "12/26", "amount": 99.99, "cardholderName": "Jane Doe"},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockPaymentCommander{processFn: tt.processFn}
			router := newTestRouter(cmds, &mockPaymentQuerier{}, "usr-001", models.RoleCustomer)
			w := doRequest(router, http.MethodPost, "/v1/payments", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestProcessPaymentForwardsCaller(t *testing.T) {
	var got cqrs.ProcessPaymentCommand
	cmds := &mockPaymentCommander{processFn: func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) {
		got = cmd
		return resultWith(models.StatusSuccess), nil
	}}
	router := newTestRouter(cmds, &mockPaymentQuerier{}, "usr-001", models.RoleCustomer)

	b, _ := json.Marshal(paymentBody())
	req, _ := http.NewRequest(http.MethodPost, "/v1/payments", strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "checkout/1.0")
	req.RemoteAddr = "203.0.113.7:52100"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d; body: %s", w.Code, w.Body.String())
	}
	if got.UserID != "usr-001" || got.IPAddress != "203.0.113.7" || got.UserAgent != "checkout/1.0" {
		t.Errorf("caller details not forwarded: user=%q ip=%q ua=%q", got.UserID, got.IPAddress, got.UserAgent)
	}
	if got.Amount != "99.99" || got.Currency != "" {
		t.Errorf("unexpected amount/currency %q/%q", got.Amount, got.Currency)
	}
}

func TestProcessPaymentResponseBodies(t *testing.T) {
	router := newTestRouter(&mockPaymentCommander{processFn: func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) {
		return resultWith(models.StatusSuccess), nil
	}}, &mockPaymentQuerier{}, "usr-001", models.RoleCustomer)

	body := decode(t, doRequest(router, http.MethodPost, "/v1/payments", paymentBody()))
	if body["success"] != true || body["transactionId"] != "txn_001" || body["amount"] != "99.99" ||
		body["currency"] != "USD" || body["status"] != "SUCCESS" || body["maskedCardNumber"] != "************1111" {
		t.Errorf("unexpected success body %v", body)
	}

	router = newTestRouter(&mockPaymentCommander{processFn: func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) {
		return resultWith(models.StatusFraud), nil
	}}, &mockPaymentQuerier{}, "usr-001", models.RoleCustomer)

	w := doRequest(router, http.MethodPost, "/v1/payments", paymentBody())
	body = decode(t, w)
	if body["success"] != false || body["status"] != "FRAUD" || body["error"] != "Payment declined" {
		t.Errorf("unexpected decline body %v", body)
	}
	for _, leaked := range []string{"fraudScore", "fraud_score", "0.93", "risk", "maskedCardNumber"} {
		if strings.Contains(w.Body.String(), leaked) {
			t.Errorf("decline body must not contain %q: %s", leaked, w.Body.String())
		}
	}
}

func TestProcessPaymentValidationDetails(t *testing.T) {
	router := newTestRouter(&mockPaymentCommander{processFn: func(cmd cqrs.ProcessPaymentCommand) (*payment.Result, error) {
		return nil, &payment.ValidationError{Fields: validation.Errors{
			{Field: "cardNumber", Err: validation.ErrInvalidCardNumber},
			{Field: "expiryDate", Err: validation.ErrInvalidExpiry},
		}}
	}}, &mockPaymentQuerier{}, "usr-001", models.RoleCustomer)

	w := doRequest(router, http.MethodPost, "/v1/payments", paymentBody())
	var res middleware.BadRequestErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Details) != 2 {
		t.Fatalf("expected 2 details, got %+v", res.Details)
	}
	if res.Details[0].Field != "cardNumber" || res.Details[0].Type != "card_number" {
		t.Errorf("unexpected first detail %+v", res.Details[0])
	}
	if res.Details[1].Field != "expiryDate" || res.Details[1].Type != "expired" {
		t.Errorf("unexpected second detail %+v", res.Details[1])
	}
}

func TestListTransactions(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		listFn         func(cqrs.ListTransactionsQuery) (*models.TransactionPage, error)
		expectedStatus int
	}{
		{
			name: "success - default paging",
			url:  "/v1/payments",
			listFn: func(q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
				if q.UserID != "usr-001" || q.Page != 0 || q.PageSize != 0 {
					return nil, fmt.Errorf("unexpected query %+v", q)
				}
				return &models.TransactionPage{Transactions: []models.TransactionView{*testView}, Page: 1, PageSize: 20, Total: 1}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "success - explicit paging",
			url:  "/v1/payments?page=2&pageSize=5",
			listFn: func(q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
				if q.Page != 2 || q.PageSize != 5 {
					return nil, fmt.Errorf("unexpected query %+v", q)
				}
				return &models.TransactionPage{Transactions: []models.TransactionView{}, Page: 2, PageSize: 5, Total: 1}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad request - non-numeric page",
			url:            "/v1/payments?page=two",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "internal error - storage failure",
			url:  "/v1/payments",
			listFn: func(q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
				return nil, repository.ErrPersistence
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qrys := &mockPaymentQuerier{listFn: tt.listFn}
			router := newTestRouter(&mockPaymentCommander{}, qrys, "usr-001", models.RoleCustomer)
			w := doRequest(router, http.MethodGet, tt.url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListTransactionsHidesOwner(t *testing.T) {
	qrys := &mockPaymentQuerier{listFn: func(q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
		return &models.TransactionPage{Transactions: []models.TransactionView{*testView}, Page: 1, PageSize: 20, Total: 1}, nil
	}}
	router := newTestRouter(&mockPaymentCommander{}, qrys, "usr-001", models.RoleCustomer)

	w := doRequest(router, http.MethodGet, "/v1/payments", nil)
	if strings.Contains(w.Body.String(), "usr-001") {
		t.Errorf("owner id must not be serialised: %s", w.Body.String())
	}
	body := decode(t, w)
	if body["total"] != float64(1) || body["pageSize"] != float64(20) {
		t.Errorf("unexpected page body %v", body)
	}
}

func TestGetTransaction(t *testing.T) {
	tests := []struct {
		name           string
		txID           string
		getFn          func(cqrs.GetTransactionQuery) (*models.TransactionView, error)
		expectedStatus int
	}{
		{
			name:           "success - own transaction",
			txID:           ownTxID,
			getFn:          func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) { return testView, nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "forbidden - another user's transaction",
			txID:           otherTxID,
			getFn:          func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) { return nil, query.ErrForbidden },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "not found - transaction does not exist",
			txID:           missingTxID,
			getFn:          func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) { return nil, repository.ErrNotFound },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "not found - malformed id never reaches storage",
			txID:           "txn_001",
			getFn:          func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) { return nil, fmt.Errorf("unexpected lookup") },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "internal error - storage failure",
			txID:           ownTxID,
			getFn:          func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) { return nil, repository.ErrPersistence },
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qrys := &mockPaymentQuerier{getFn: func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
				if q.TransactionID != tt.txID || q.Requester.UserID != "usr-001" {
					return nil, fmt.Errorf("unexpected query %+v", q)
				}
				return tt.getFn(q)
			}}
			router := newTestRouter(&mockPaymentCommander{}, qrys, "usr-001", models.RoleCustomer)
			w := doRequest(router, http.MethodGet, "/v1/payments/"+tt.txID, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	qrys := &mockPaymentQuerier{statsFn: func(q cqrs.GetStatsQuery) (*models.UserStats, error) {
		return &models.UserStats{TotalTransactions: 3, TotalAmount: decimal.RequireFromString("120.00"), SuccessfulCount: 2, FraudCount: 1}, nil
	}}
	router := newTestRouter(&mockPaymentCommander{}, qrys, "usr-001", models.RoleCustomer)

	w := doRequest(router, http.MethodGet, "/v1/payments/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d; body: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["totalTransactions"] != float64(3) || body["totalAmount"] != "120" || body["fraudCount"] != float64(1) {
		t.Errorf("unexpected stats body %v", body)
	}
}

func TestListFraudAlerts(t *testing.T) {
	tests := []struct {
		name           string
		role           string
		expectedStatus int
	}{
		{"success - admin", models.RoleAdmin, http.StatusOK},
		{"forbidden - customer", models.RoleCustomer, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qrys := &mockPaymentQuerier{alertsFn: func(q cqrs.ListFraudAlertsQuery) ([]alerts.Alert, error) {
				if !q.Requester.IsAdmin() {
					return nil, query.ErrForbidden
				}
				if q.Limit != defaultAlertLimit {
					return nil, fmt.Errorf("unexpected limit %d", q.Limit)
				}
				return []alerts.Alert{{TransactionID: "txn_fraud", UserID: "usr-009"}}, nil
			}}
			router := newTestRouter(&mockPaymentCommander{}, qrys, "usr-admin", tt.role)
			w := doRequest(router, http.MethodGet, "/v1/admin/fraud-alerts", nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
