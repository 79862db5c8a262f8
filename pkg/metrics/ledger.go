package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// LedgerMetrics tracks ledger write activity and rejected operations.
type LedgerMetrics struct {
	payments       *prometheus.CounterVec
	paymentAmounts *prometheus.CounterVec
	returns        prometheus.Counter
	rejections     *prometheus.CounterVec
}

// NewLedgerMetrics registers ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payments_total",
		Help: "Payments recorded, labelled by method.",
	}, []string{"method"})
	paymentAmounts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payment_amount_total",
		Help: "Sum of recorded payment amounts, labelled by method.",
	}, []string{"method"})
	returns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_returns_total",
		Help: "Ticket return records created.",
	})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_rejections_total",
		Help: "Ledger writes rejected by invariant checks, labelled by kind.",
	}, []string{"kind"})
	reg.MustRegister(payments, paymentAmounts, returns, rejections)
	return &LedgerMetrics{
		payments:       payments,
		paymentAmounts: paymentAmounts,
		returns:        returns,
		rejections:     rejections,
	}
}

// IncPayment records a successful payment write.
func (m *LedgerMetrics) IncPayment(method string, amount decimal.Decimal) {
	if m == nil || m.payments == nil {
		return
	}
	label := normalizeLabel(method)
	m.payments.WithLabelValues(label).Inc()
	amt, _ := amount.Float64()
	m.paymentAmounts.WithLabelValues(label).Add(amt)
}

// IncReturn records a successful return write.
func (m *LedgerMetrics) IncReturn() {
	if m == nil || m.returns == nil {
		return
	}
	m.returns.Inc()
}

// IncRejection records a write rejected by an invariant check.
func (m *LedgerMetrics) IncRejection(kind string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
