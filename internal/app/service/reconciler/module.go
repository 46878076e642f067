package reconciler

import (
	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/eventledger"
	"github.com/fatflowers/membership/internal/app/service/eventlog"
	"github.com/fatflowers/membership/internal/app/service/subscription"
	"github.com/fatflowers/membership/internal/platform/stripe"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newReconciler(store *subscription.Service, processor *stripe.Client, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Billing) *Reconciler {
	return New(store, processor, cfg, log, m)
}

func newIngress(resolver *billingconfig.Resolver, r *Reconciler, ledger *eventledger.Ledger, events *eventlog.Service, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Billing) *Ingress {
	p := IngressParams{
		Secrets:  resolver,
		Applier:  r,
		Recorder: events,
		Policy:   cfg.Billing.WriteFailurePolicy,
		Log:      log,
		Metrics:  m,
	}
	if ledger != nil {
		p.Ledger = ledger
	}
	return NewIngress(p)
}

// Module exposes the reconciler and the webhook ingress via Fx.
var Module = fx.Options(
	fx.Provide(newReconciler),
	fx.Provide(newIngress),
)
