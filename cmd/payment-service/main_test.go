package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Attaullahwazir/Payzenix/internal/handler"
	"github.com/Attaullahwazir/Payzenix/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	router := newRouter(handler.NewPaymentHandler(nil, nil), m, []byte("router-test-secret"), slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name           string
		method         string
		url            string
		expectedStatus int
	}{
		{"health is public", http.MethodGet, "/health", http.StatusOK},
		{"metrics are public", http.MethodGet, "/metrics", http.StatusOK},
		{"process requires auth", http.MethodPost, "/v1/payments", http.StatusUnauthorized},
		{"list requires auth", http.MethodGet, "/v1/payments", http.StatusUnauthorized},
		{"stats requires auth", http.MethodGet, "/v1/payments/stats", http.StatusUnauthorized},
		{"get requires auth", http.MethodGet, "/v1/payments/txn_1", http.StatusUnauthorized},
		{"alerts require auth", http.MethodGet, "/v1/admin/fraud-alerts", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/v2/payments", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.url, nil))
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Errorf("expected request counter in metrics output")
	}
}
