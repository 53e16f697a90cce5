package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New("caps")

	m.Checkout("success")
	m.Checkout("success")
	m.StockDeduction("conflict")
	m.StockRetry()
	m.Transition("completed", "ok")
	m.ObserveHTTP(http.MethodPost, "/checkout", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkouts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockDeductions.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockRetries))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `caps_http_requests_total{method="POST",route="/checkout",status="200"} 1`))
	assert.True(t, strings.Contains(body, "caps_appointments_transitions_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Checkout("success")
		m.StockDeduction("ok")
		m.StockRetry()
		m.Transition("cancelled", "ok")
		m.ObserveHTTP(http.MethodGet, "/", 200, time.Millisecond)
		m.EventConsumed("order.placed")
		m.Sale("cash", 10)
	})
	assert.Nil(t, m.Registry())
}

func TestSalesLedgerCounters(t *testing.T) {
	m := New("caps")

	m.EventConsumed("order.placed")
	m.EventConsumed("order.placed")
	m.Sale("cash", 300)
	m.Sale("cash", 150.5)
	m.Sale("gcash", 99)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsConsumed.WithLabelValues("order.placed")))
	assert.Equal(t, 450.5, testutil.ToFloat64(m.salesAmount.WithLabelValues("cash")))
	assert.Equal(t, 99.0, testutil.ToFloat64(m.salesAmount.WithLabelValues("gcash")))
}
