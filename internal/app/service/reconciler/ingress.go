package reconciler

import (
	"context"
	"errors"

	"github.com/fatflowers/membership/internal/app/service/billingevent"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/metrics"

	"go.uber.org/zap"
)

// SecretSource yields the webhook signing secret.
type SecretSource interface {
	WebhookSecret(ctx context.Context) (string, error)
}

// Applier performs the store effect of a verified event.
type Applier interface {
	Apply(ctx context.Context, ev *billingevent.Event) (*Result, error)
}

// Ledger remembers event ids that were handled successfully.
type Ledger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Recorder keeps the billing event log.
type Recorder interface {
	Received(ctx context.Context, ev *billingevent.Event)
	Finished(ctx context.Context, ev *billingevent.Event, res any, err error)
}

// Delivery is the outcome of one webhook delivery.
type Delivery struct {
	EventID   string
	EventType billingevent.Type
	Result    *Result
	// Duplicate is set when the ledger already recorded the event as handled.
	Duplicate bool
	// FailureAcknowledged is set when a store write failed and the acknowledge
	// policy swallowed it.
	FailureAcknowledged bool
}

// Ingress verifies webhook deliveries and runs them through the reconciler.
type Ingress struct {
	secrets  SecretSource
	applier  Applier
	ledger   Ledger
	recorder Recorder
	policy   config.WriteFailurePolicy
	log      *zap.SugaredLogger
	metrics  *metrics.Billing
}

type IngressParams struct {
	Secrets  SecretSource
	Applier  Applier
	Ledger   Ledger
	Recorder Recorder
	Policy   config.WriteFailurePolicy
	Log      *zap.SugaredLogger
	Metrics  *metrics.Billing
}

func NewIngress(p IngressParams) *Ingress {
	policy := p.Policy
	if policy == "" {
		policy = config.WriteFailurePolicyRetry
	}
	return &Ingress{
		secrets:  p.Secrets,
		applier:  p.Applier,
		ledger:   p.Ledger,
		recorder: p.Recorder,
		policy:   policy,
		log:      p.Log,
		metrics:  p.Metrics,
	}
}

// Handle verifies payload against the signature header and applies the event.
// Nothing is written unless verification succeeds. The returned Delivery is non-nil
// whenever the event was parsed, including on error.
func (in *Ingress) Handle(ctx context.Context, payload []byte, sigHeader string) (*Delivery, error) {
	lg := logctx.FromCtx(ctx, in.log)

	secret, err := in.secrets.WebhookSecret(ctx)
	if err != nil {
		lg.Errorw("webhook_secret_unavailable", "err", err)
		in.count("unknown", metrics.OutcomeRejected)
		return nil, err
	}

	ev, err := billingevent.Parse(payload, sigHeader, secret)
	if err != nil {
		lg.Warnw("webhook_rejected", "err", err)
		in.count("unknown", metrics.OutcomeRejected)
		return nil, err
	}
	d := &Delivery{EventID: ev.ID, EventType: ev.Type}
	lg = lg.With("event_id", ev.ID, "event_type", ev.Type)
	lg.Infow("webhook_received", "created_at", ev.CreatedAt, "livemode", ev.Livemode)

	if in.ledger != nil {
		seen, err := in.ledger.Seen(ctx, ev.ID)
		if err != nil {
			lg.Warnw("event_ledger_unavailable", "err", err)
		} else if seen {
			lg.Infow("webhook_duplicate_skipped")
			d.Duplicate = true
			d.Result = &Result{Action: ActionIgnored, Reason: "already handled"}
			in.count(string(ev.Type), metrics.OutcomeDuplicate)
			return d, nil
		}
	}

	if in.recorder != nil {
		in.recorder.Received(ctx, ev)
	}
	res, err := in.applier.Apply(ctx, ev)
	if in.recorder != nil {
		in.recorder.Finished(ctx, ev, res, err)
	}
	d.Result = res

	if err != nil {
		switch {
		case errors.Is(err, ErrStoreWrite) && in.policy == config.WriteFailurePolicyAcknowledge:
			lg.Errorw("reconcile_failed_acknowledged", "err", err)
			d.FailureAcknowledged = true
			in.count(string(ev.Type), metrics.OutcomeAcknowledged)
			return d, nil
		case errors.Is(err, billingevent.ErrInvalidPayload):
			lg.Warnw("reconcile_rejected", "err", err)
			in.count(string(ev.Type), metrics.OutcomeRejected)
		default:
			lg.Errorw("reconcile_failed", "err", err)
			in.count(string(ev.Type), metrics.OutcomeFailed)
		}
		return d, err
	}

	if in.ledger != nil {
		if err := in.ledger.Mark(ctx, ev.ID); err != nil {
			lg.Warnw("event_ledger_mark_failed", "err", err)
		}
	}
	in.count(string(ev.Type), outcomeOf(res))
	lg.Infow("webhook_handled", "action", res.Action)
	return d, nil
}

func outcomeOf(res *Result) string {
	switch res.Action {
	case ActionIgnored:
		return metrics.OutcomeIgnored
	case ActionStale:
		return metrics.OutcomeStale
	}
	return metrics.OutcomeHandled
}

func (in *Ingress) count(eventType, outcome string) {
	if in.metrics == nil {
		return
	}
	in.metrics.WebhookRequests.WithLabelValues(eventType, outcome).Inc()
}
