package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MoneyMetrics records counters for the money-moving paths.
type MoneyMetrics struct {
	payments  *prometheus.CounterVec
	walletOps *prometheus.CounterVec
	coupons   prometheus.Counter
}

// NewMoneyMetrics registers the money metrics on the provided registerer.
func NewMoneyMetrics(reg prometheus.Registerer) *MoneyMetrics {
	if reg == nil {
		return &MoneyMetrics{}
	}
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transitions_total",
		Help: "Payment state transitions by action.",
	}, []string{"action"})
	walletOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Wallet ledger operations by kind and outcome.",
	}, []string{"kind", "outcome"})
	coupons := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coupon_applications_total",
		Help: "Coupons successfully applied to orders.",
	})
	reg.MustRegister(payments, walletOps, coupons)
	return &MoneyMetrics{
		payments:  payments,
		walletOps: walletOps,
		coupons:   coupons,
	}
}

// IncPayment increments the payment transition counter for the named action.
func (m *MoneyMetrics) IncPayment(action string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncWalletOp increments the wallet operation counter.
func (m *MoneyMetrics) IncWalletOp(kind, outcome string) {
	if m == nil || m.walletOps == nil {
		return
	}
	m.walletOps.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncCouponApplied increments the coupon application counter.
func (m *MoneyMetrics) IncCouponApplied() {
	if m == nil || m.coupons == nil {
		return
	}
	m.coupons.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
