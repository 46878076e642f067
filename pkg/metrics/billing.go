package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const billingSubsystem = "billing"

var webhookRequests = &Metric{
	ID:          "webhookReq",
	Name:        "webhook_requests_total",
	Description: "Processor webhook deliveries partitioned by event type and outcome.",
	Type:        "counter_vec",
	Args:        []string{"event_type", "outcome"},
}

var reconcileDur = &Metric{
	ID:          "reconcileDur",
	Name:        "reconcile_dur_ms",
	Description: "Reconciler latency per event type in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"event_type"},
}

var configResolutions = &Metric{
	ID:          "configRes",
	Name:        "config_resolutions_total",
	Description: "Billing secret lookups partitioned by key and the source that answered.",
	Type:        "counter_vec",
	Args:        []string{"key", "source"},
}

var paymentTransactions = &Metric{
	ID:          "paymentTx",
	Name:        "payment_transactions_total",
	Description: "Payment transactions recorded, partitioned by status and currency.",
	Type:        "counter_vec",
	Args:        []string{"status", "currency"},
}

var checkoutSessions = &Metric{
	ID:          "checkoutSess",
	Name:        "checkout_sessions_total",
	Description: "Checkout session attempts partitioned by outcome.",
	Type:        "counter_vec",
	Args:        []string{"outcome"},
}

// Webhook outcomes.
const (
	OutcomeHandled      = "handled"
	OutcomeIgnored      = "ignored"
	OutcomeDuplicate    = "duplicate"
	OutcomeStale        = "stale"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
	OutcomeAcknowledged = "failed_acknowledged"
)

// Billing groups the domain metrics of the reconciliation pipeline.
type Billing struct {
	WebhookRequests     *prometheus.CounterVec
	ReconcileDuration   *prometheus.HistogramVec
	ConfigResolutions   *prometheus.CounterVec
	PaymentTransactions *prometheus.CounterVec
	CheckoutSessions    *prometheus.CounterVec
}

// NewBilling builds the billing metrics and registers them on reg.
func NewBilling(reg prometheus.Registerer) (*Billing, error) {
	b := &Billing{
		WebhookRequests:     NewMetric(webhookRequests, billingSubsystem).(*prometheus.CounterVec),
		ReconcileDuration:   NewMetric(reconcileDur, billingSubsystem).(*prometheus.HistogramVec),
		ConfigResolutions:   NewMetric(configResolutions, billingSubsystem).(*prometheus.CounterVec),
		PaymentTransactions: NewMetric(paymentTransactions, billingSubsystem).(*prometheus.CounterVec),
		CheckoutSessions:    NewMetric(checkoutSessions, billingSubsystem).(*prometheus.CounterVec),
	}
	if reg == nil {
		return b, nil
	}
	for _, c := range []prometheus.Collector{b.WebhookRequests, b.ReconcileDuration, b.ConfigResolutions, b.PaymentTransactions, b.CheckoutSessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// NewNopBilling returns unregistered billing metrics for tests and tools.
func NewNopBilling() *Billing {
	b, _ := NewBilling(nil)
	return b
}

func newRegistry() (prometheus.Registerer, prometheus.Gatherer) {
	return prometheus.DefaultRegisterer, prometheus.DefaultGatherer
}

var Module = fx.Options(
	fx.Provide(newRegistry),
	fx.Provide(NewBilling),
)
