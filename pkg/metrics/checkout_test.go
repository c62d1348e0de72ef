package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.OrderPlaced("CARD", false)
	m.OrderPlaced("CARD", false)
	m.OrderPlaced("COD", true)
	m.OrderRejected("duplicate_order")
	m.WebhookEvent("payment_succeeded", "applied")
	m.PostCommitTask("inventory.decrement", 10*time.Millisecond, false)
	m.PostCommitTask("notify.customer", 5*time.Millisecond, true)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"orders_placed_total", map[string]string{"method": "CARD", "guest": "false"}, 2},
		{"orders_placed_total", map[string]string{"method": "COD", "guest": "true"}, 1},
		{"order_rejections_total", map[string]string{"reason": "duplicate_order"}, 1},
		{"webhook_events_total", map[string]string{"kind": "payment_succeeded", "outcome": "applied"}, 1},
		{"post_commit_failures_total", map[string]string{"task": "notify.customer"}, 1},
	}
	for _, c := range checks {
		got, err := counterValue(mfs, c.name, c.labels)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s%v: expected %v, got %v", c.name, c.labels, c.want, got)
		}
	}
	if _, err := counterValue(mfs, "post_commit_failures_total", map[string]string{"task": "inventory.decrement"}); err == nil {
		t.Fatal("successful task must not count as a failure")
	}
}

func TestNilCheckoutMetricsIsNoop(t *testing.T) {
	var m *CheckoutMetrics
	m.OrderPlaced("CARD", false)
	m.OrderRejected("x")
	m.WebhookEvent("x", "y")
	m.PostCommitTask("x", time.Second, true)
	if NewCheckoutMetrics(nil) != nil {
		t.Fatal("nil registerer should yield nil metrics")
	}
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchesLabels(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue(), nil
			}
		}
		return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
