package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconciliation label values.
const (
	PathDirect  = "direct"
	PathWebhook = "webhook"

	OutcomePaid             = "paid"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeCancelled        = "cancelled"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeNotFound         = "not_found"
	OutcomeError            = "error"
)

type Metrics struct {
	OrdersCreated   prometheus.Counter
	Reconciliations *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
	StockClamped    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "orders_created_total",
			Help:      "Total number of pending orders created at checkout.",
		}),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "payment_reconciliations_total",
			Help:      "Payment confirmation signals by entry path and outcome.",
		}, []string{"path", "outcome"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "webhook_events_total",
			Help:      "Gateway webhook events received, by event type.",
		}, []string{"event"}),
		StockClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shop",
			Name:      "stock_clamped_total",
			Help:      "Paid-time stock deductions clamped at zero (oversell needing manual reconciliation).",
		}),
	}

	reg.MustRegister(m.OrdersCreated, m.Reconciliations, m.WebhookEvents, m.StockClamped)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
