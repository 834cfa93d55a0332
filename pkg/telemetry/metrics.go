package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus primitives scraped from /metrics.
type Metrics struct {
	apiRequests      *prometheus.CounterVec
	apiDuration      *prometheus.HistogramVec
	documentsCreated prometheus.Counter
	operationsStored *prometheus.CounterVec
	invoiceAmount    *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg, or the default registry when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicedoc_api_requests_total",
		Help: "Counts API requests by method, route and status.",
	}, []string{"method", "route", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoicedoc_api_duration_seconds",
		Help:    "API request latency per method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	documentsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invoicedoc_documents_created_total",
		Help: "Invoice documents created.",
	})

	operationsStored := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicedoc_operations_stored_total",
		Help: "Operations appended to document logs, by action type.",
	}, []string{"action_type"})

	invoiceAmount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoicedoc_invoice_amount",
			Help:    "Tax-inclusive invoice total at export time.",
			Buckets: []float64{10, 100, 1000, 10000, 100000},
		},
		[]string{"currency"},
	)

	reg.MustRegister(
		apiRequests,
		apiDuration,
		documentsCreated,
		operationsStored,
		invoiceAmount,
	)

	return &Metrics{
		apiRequests:      apiRequests,
		apiDuration:      apiDuration,
		documentsCreated: documentsCreated,
		operationsStored: operationsStored,
		invoiceAmount:    invoiceAmount,
	}
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := sanitizeLabel(method)
	routeLabel := sanitizeLabel(route)
	m.apiRequests.WithLabelValues(methodLabel, routeLabel, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}

func (m *Metrics) IncDocumentsCreated() {
	if m == nil {
		return
	}
	m.documentsCreated.Inc()
}

func (m *Metrics) IncOperationsStored(actionType string) {
	if m == nil {
		return
	}
	m.operationsStored.WithLabelValues(sanitizeLabel(actionType)).Inc()
}

func (m *Metrics) ObserveInvoiceAmount(currency string, amount float64) {
	if m == nil {
		return
	}
	m.invoiceAmount.WithLabelValues(sanitizeLabel(currency)).Observe(amount)
}

// GinMiddleware records request counts and latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveAPIRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
