package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the checkout service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CheckoutTotal            *prometheus.CounterVec
	GatewayRequestDuration   *prometheus.HistogramVec
	WebhookNotificationTotal *prometheus.CounterVec
	TransitionTotal          *prometheus.CounterVec
	EnrollmentCreatedTotal   prometheus.Counter
	TaskTotal                *prometheus.CounterVec
	CheckoutLockTotal        *prometheus.CounterVec
	RateLimitedTotal         prometheus.Counter
	EmailJobTotal            *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CheckoutTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_requests_total",
				Help: "Checkout attempts by result",
			},
			[]string{"result"},
		),
		GatewayRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkout_gateway_request_duration_seconds",
				Help:    "Duration of payment gateway session requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		WebhookNotificationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_webhook_notifications_total",
				Help: "Gateway webhook deliveries by outcome",
			},
			[]string{"outcome"},
		),
		TransitionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_transaction_transitions_total",
				Help: "Applied transaction status transitions",
			},
			[]string{"to", "source"},
		),
		EnrollmentCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_enrollments_created_total",
				Help: "Enrollments created from settled payments",
			},
		),
		TaskTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_tasks_processed_total",
				Help: "Deferred task executions by result",
			},
			[]string{"task", "result"},
		),
		CheckoutLockTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_lock_acquire_total",
				Help: "Checkout lock acquisitions by result",
			},
			[]string{"result"},
		),
		RateLimitedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_rate_limited_total",
				Help: "Checkout requests rejected by the rate limiter",
			},
		),
		EmailJobTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_email_jobs_total",
				Help: "Email job publish attempts by template and result",
			},
			[]string{"template", "result"},
		),
	}
}

func (m *Metrics) ObserveCheckout(result string) {
	if m == nil {
		return
	}
	m.CheckoutTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveGatewayRequest(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequestDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveWebhook(outcome string) {
	if m == nil {
		return
	}
	m.WebhookNotificationTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(to, source string) {
	if m == nil {
		return
	}
	m.TransitionTotal.WithLabelValues(to, source).Inc()
}

func (m *Metrics) ObserveEnrollmentCreated() {
	if m == nil {
		return
	}
	m.EnrollmentCreatedTotal.Inc()
}

func (m *Metrics) ObserveTask(task, result string) {
	if m == nil {
		return
	}
	m.TaskTotal.WithLabelValues(task, result).Inc()
}

func (m *Metrics) ObserveLock(result string) {
	if m == nil {
		return
	}
	m.CheckoutLockTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

func (m *Metrics) ObserveEmailJob(template, result string) {
	if m == nil {
		return
	}
	m.EmailJobTotal.WithLabelValues(template, result).Inc()
}
