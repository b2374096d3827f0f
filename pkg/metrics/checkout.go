package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics counts checkout and payment callback outcomes.
type CheckoutMetrics struct {
	checkouts *prometheus.CounterVec
	callbacks *prometheus.CounterVec
}

// NewCheckoutMetrics registers the counters on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callback_total",
		Help: "Payment gateway callbacks by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(checkouts, callbacks)
	return &CheckoutMetrics{checkouts: checkouts, callbacks: callbacks}
}

// IncCheckout records one checkout attempt with the given outcome label.
func (m *CheckoutMetrics) IncCheckout(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCallback records one gateway callback with the given outcome label.
func (m *CheckoutMetrics) IncCallback(outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
