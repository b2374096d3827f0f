package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCheckoutMetricsCount(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncCheckout("success")
	m.IncCheckout("success")
	m.IncCheckout("insufficient_stock")
	m.IncCallback("")

	if got := testutil.ToFloat64(m.checkouts.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful checkouts, got %v", got)
	}
	if got := testutil.ToFloat64(m.callbacks.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty outcome to normalize to unknown, got %v", got)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	t.Parallel()

	m := NewCheckoutMetrics(nil)
	m.IncCheckout("success")
	m.IncCallback("declined")

	var nilMetrics *CheckoutMetrics
	nilMetrics.IncCheckout("success")
}
