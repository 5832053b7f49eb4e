package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics methods are safe on a nil receiver so components can run without them.
type Metrics struct {
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	paymentsTotal     *prometheus.CounterVec
	rejectionsTotal   *prometheus.CounterVec
	fraudScore        prometheus.Histogram
	eventFailures     prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics registers every collector on reg. Pass prometheus.NewRegistry()
// in tests to avoid clashing with the default registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_processed_total",
			Help: "Stored payment transactions by final status.",
		}, []string{"status"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_rejected_total",
			Help: "Payment attempts that produced no transaction, by reason.",
		}, []string{"reason"}),
		fraudScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_fraud_score",
			Help:    "Distribution of fraud scores for stored transactions.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		eventFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_event_publish_failures_total",
			Help: "payment.processed events that could not be published.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.paymentsTotal,
		m.rejectionsTotal,
		m.fraudScore,
		m.eventFailures,
	)

	return m
}

// GinMiddleware records request count and latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// PaymentProcessed counts one stored transaction.
func (m *Metrics) PaymentProcessed(status string, score float64) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(status).Inc()
	m.fraudScore.Observe(score)
}

// PaymentRejected counts an attempt that stored nothing.
func (m *Metrics) PaymentRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) EventPublishFailed() {
	if m == nil {
		return
	}
	m.eventFailures.Inc()
}
