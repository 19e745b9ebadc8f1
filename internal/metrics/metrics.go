// Package metrics exposes the job lifecycle counters scraped by Prometheus.
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vocalizz"

// Collector groups every metric the service records.
type Collector struct {
	reservations    *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	compensations   *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
	cleanupFailures prometheus.Counter
	webhookLatency  *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

// NewCollector registers the metrics on reg. A *prometheus.Registry is both
// Registerer and Gatherer; pass prometheus.NewRegistry() in tests.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Credit and quota reservations by outcome.",
		}, []string{"kind", "outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Training submissions to the provider by result.",
		}, []string{"result"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Provider notifications by outcome.",
		}, []string{"outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_compensated_total",
			Help:      "Jobs failed through compensation.",
		}, []string{"refunded"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_cancelled_total",
			Help:      "Explicit job cancellations by reason.",
		}, []string{"reason"}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_cleanup_failures_total",
			Help:      "Best-effort artifact deletions that failed.",
		}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Webhook handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		gatherer: reg,
	}
	reg.MustRegister(
		c.reservations,
		c.submissions,
		c.reconciliations,
		c.compensations,
		c.cancellations,
		c.cleanupFailures,
		c.webhookLatency,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) RecordReservation(kind, outcome string) {
	if c == nil {
		return
	}
	c.reservations.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) RecordSubmission(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.submissions.WithLabelValues(result).Inc()
}

func (c *Collector) RecordReconciliation(outcome string) {
	if c == nil {
		return
	}
	c.reconciliations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCompensation(refunded bool) {
	if c == nil {
		return
	}
	label := "false"
	if refunded {
		label = "true"
	}
	c.compensations.WithLabelValues(label).Inc()
}

func (c *Collector) RecordCancellation(reason string) {
	if c == nil {
		return
	}
	c.cancellations.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordCleanupFailure() {
	if c == nil {
		return
	}
	c.cleanupFailures.Inc()
}

func (c *Collector) ObserveWebhook(source string, d time.Duration) {
	if c == nil {
		return
	}
	c.webhookLatency.WithLabelValues(source).Observe(d.Seconds())
}
