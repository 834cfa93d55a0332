package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/invoices/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/invoices/42", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("GET", "/api/invoices/:id", "204")))
}

func TestDocumentCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.IncDocumentsCreated()
	m.IncOperationsStored("ADD_LINE_ITEM")
	m.IncOperationsStored("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsStored.WithLabelValues("unknown")))

	var nilMetrics *Metrics
	nilMetrics.IncDocumentsCreated()
}

func TestRegistryExposesInvoiceFamilies(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveInvoiceAmount("EUR", 220)
	m.IncDocumentsCreated()

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}
	require.Contains(t, byName, "invoicedoc_invoice_amount")
	hist := byName["invoicedoc_invoice_amount"].GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), hist.GetSampleCount())
	assert.Equal(t, 220.0, hist.GetSampleSum())
	assert.Equal(t, dto.MetricType_COUNTER, byName["invoicedoc_documents_created_total"].GetType())
}
