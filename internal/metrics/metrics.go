// Package metrics owns the Prometheus collectors of a binary. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	checkouts       *prometheus.CounterVec
	stockDeductions *prometheus.CounterVec
	stockRetries    prometheus.Counter
	transitions     *prometheus.CounterVec
	eventsConsumed  *prometheus.CounterVec
	salesAmount     *prometheus.CounterVec
}

// New registers every collector on a fresh registry, so several instances
// can live in one test binary.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route template and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by method, route template and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkouts_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		stockDeductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stock", Name: "deductions_total",
			Help: "Stock deduction batches by outcome.",
		}, []string{"outcome"}),
		stockRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stock", Name: "cas_retries_total",
			Help: "Stock writes retried after a concurrent change.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "appointments", Name: "transitions_total",
			Help: "Appointment status transitions by target status and outcome.",
		}, []string{"status", "outcome"}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "events", Name: "consumed_total",
			Help: "Domain events consumed by type.",
		}, []string{"type"}),
		salesAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sales", Name: "amount_total",
			Help: "Sales amount seen on placed orders by payment method.",
		}, []string{"payment_method"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.checkouts, m.stockDeductions, m.stockRetries, m.transitions,
		m.eventsConsumed, m.salesAmount,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

func (m *Metrics) Checkout(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StockDeduction(outcome string) {
	if m == nil {
		return
	}
	m.stockDeductions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StockRetry() {
	if m == nil {
		return
	}
	m.stockRetries.Inc()
}

func (m *Metrics) Transition(status, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status, outcome).Inc()
}

func (m *Metrics) EventConsumed(eventType string) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(eventType).Inc()
}

func (m *Metrics) Sale(paymentMethod string, amount float64) {
	if m == nil {
		return
	}
	m.salesAmount.WithLabelValues(paymentMethod).Add(amount)
}
