package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts order placement, webhook reconciliation and post-commit work.
// A nil *CheckoutMetrics is valid and records nothing.
type CheckoutMetrics struct {
	ordersPlaced      *prometheus.CounterVec
	rejections        *prometheus.CounterVec
	webhookEvents     *prometheus.CounterVec
	postCommitFailure *prometheus.CounterVec
	postCommitLatency *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout collectors on reg.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return nil
	}
	m := &CheckoutMetrics{
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders persisted, by payment method and guest flag.",
		}, []string{"method", "guest"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_rejections_total",
			Help: "Order placements rejected before persistence, by reason.",
		}, []string{"reason"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Payment webhook events processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		postCommitFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "post_commit_failures_total",
			Help: "Post-commit side effects that failed, by task.",
		}, []string{"task"}),
		postCommitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "post_commit_task_duration_seconds",
			Help:    "Duration of post-commit side effects in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
	}
	reg.MustRegister(m.ordersPlaced, m.rejections, m.webhookEvents, m.postCommitFailure, m.postCommitLatency)
	return m
}

func (m *CheckoutMetrics) OrderPlaced(method string, guest bool) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(label(method), strconv.FormatBool(guest)).Inc()
}

func (m *CheckoutMetrics) OrderRejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(label(reason)).Inc()
}

func (m *CheckoutMetrics) WebhookEvent(kind, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(label(kind), label(outcome)).Inc()
}

// PostCommitTask records the duration of a task and whether it failed.
func (m *CheckoutMetrics) PostCommitTask(task string, took time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.postCommitLatency.WithLabelValues(label(task)).Observe(took.Seconds())
	if failed {
		m.postCommitFailure.WithLabelValues(label(task)).Inc()
	}
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
