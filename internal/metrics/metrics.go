// Package metrics exposes Prometheus collectors for payment processing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tuition"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	paymentsTotal   *prometheus.CounterVec
	paymentDuration prometheus.Histogram
	auditFailures   prometheus.Counter
}

// New creates collectors on a fresh registry, including Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by outcome status and failure reason.",
		}, []string{"status", "reason"}),
		paymentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_duration_seconds",
			Help:      "Time spent processing a payment attempt, audit write included.",
			Buckets:   prometheus.DefBuckets,
		}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_audit_failures_total",
			Help:      "Failed payment attempts whose audit record could not be written.",
		}),
	}
	registry.MustRegister(m.paymentsTotal, m.paymentDuration, m.auditFailures)

	return m
}

// ObservePayment records the outcome of one payment attempt.
func (m *Metrics) ObservePayment(status, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(status, reason).Inc()
	m.paymentDuration.Observe(elapsed.Seconds())
}

// AuditWriteFailed counts a FAILED record that could not be persisted.
func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
