package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Checkout outcomes used as the "result" label.
const (
	CheckoutResultSuccess           = "success"
	CheckoutResultInsufficientStock = "insufficient_stock"
	CheckoutResultInsufficientFunds = "insufficient_funds"
	CheckoutResultRejected          = "rejected"
	CheckoutResultError             = "error"
)

// CheckoutMetrics tracks checkout attempts and the orders they produce.
type CheckoutMetrics struct {
	attempts *prometheus.CounterVec
	orders   *prometheus.CounterVec
	revenue  *prometheus.CounterVec
}

// NewCheckoutMetrics registers checkout metrics; a nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"result"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "orders_created_total",
		Help:      "Vendor orders created by checkout.",
	}, []string{"payment_method"})
	revenue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "order_value_total",
		Help:      "Sum of order totals created by checkout.",
	}, []string{"payment_method"})
	reg.MustRegister(attempts, orders, revenue)
	return &CheckoutMetrics{attempts: attempts, orders: orders, revenue: revenue}
}

// IncAttempt counts one checkout attempt with the given result.
func (c *CheckoutMetrics) IncAttempt(result string) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveOrders records the orders created by a successful checkout.
func (c *CheckoutMetrics) ObserveOrders(paymentMethod string, count int, total decimal.Decimal) {
	if c == nil || c.orders == nil {
		return
	}
	method := normalizeLabel(paymentMethod)
	c.orders.WithLabelValues(method).Add(float64(count))
	c.revenue.WithLabelValues(method).Add(total.InexactFloat64())
}
