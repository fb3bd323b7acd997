// Package metrics exposes Prometheus instrumentation for the mail engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so services can be constructed without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Delivery metrics
	SendsTotal    *prometheus.CounterVec
	BatchDuration prometheus.Histogram

	// Scheduler metrics
	TicksTotal         *prometheus.CounterVec
	EnrollmentOutcomes *prometheus.CounterVec
	TickDuration       prometheus.Histogram

	// Engagement metrics
	WebhookEvents   *prometheus.CounterVec
	WebhookRejected *prometheus.CounterVec

	// Contact mirror metrics
	ContactSyncTotal *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SendsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mail_sends_total",
				Help: "Messages handed to the provider",
			},
			[]string{"kind", "outcome"}, // sequence|broadcast, sent|failed
		),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_batch_duration_seconds",
			Help:    "Provider batch call latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		TicksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequence_ticks_total",
				Help: "Scheduler ticks by result",
			},
			[]string{"result"}, // ran, weekend, idle, failed
		),
		EnrollmentOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sequence_enrollment_outcomes_total",
				Help: "Per-enrollment decisions taken by the scheduler",
			},
			[]string{"outcome"}, // completed, not_due, catch_up, cancelled, sent, failed
		),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sequence_tick_duration_seconds",
			Help:    "Duration of a scheduler tick in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		WebhookEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Accepted provider webhook events by type",
			},
			[]string{"type"},
		),
		WebhookRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_rejected_total",
				Help: "Rejected provider webhooks by reason",
			},
			[]string{"reason"},
		),

		ContactSyncTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_sync_total",
				Help: "Contact mirror operations by op and outcome",
			},
			[]string{"op", "outcome"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordSend counts one delivery outcome for kind.
func (m *Metrics) RecordSend(kind string, ok bool) {
	if m == nil {
		return
	}
	m.SendsTotal.WithLabelValues(kind, outcome(ok)).Inc()
}

// RecordSends counts n outcomes at once.
func (m *Metrics) RecordSends(kind string, ok bool, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SendsTotal.WithLabelValues(kind, outcome(ok)).Add(float64(n))
}

// ObserveBatch records the latency of one provider batch call.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

// RecordTick counts a scheduler tick and its duration.
func (m *Metrics) RecordTick(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(result).Inc()
	m.TickDuration.Observe(d.Seconds())
}

// RecordEnrollment counts a per-enrollment scheduler outcome.
func (m *Metrics) RecordEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.EnrollmentOutcomes.WithLabelValues(outcome).Inc()
}

// RecordWebhook counts an accepted webhook event.
func (m *Metrics) RecordWebhook(eventType string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType).Inc()
}

// RecordWebhookRejected counts a rejected webhook delivery.
func (m *Metrics) RecordWebhookRejected(reason string) {
	if m == nil {
		return
	}
	m.WebhookRejected.WithLabelValues(reason).Inc()
}

// RecordContactSync counts a contact mirror operation.
func (m *Metrics) RecordContactSync(op string, ok bool) {
	if m == nil {
		return
	}
	m.ContactSyncTotal.WithLabelValues(op, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "sent"
	}
	return "failed"
}
