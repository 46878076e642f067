package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/app/service/billingevent"
	"github.com/fatflowers/membership/internal/app/service/subscription"
	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/types"

	"go.uber.org/zap"
)

// ErrStoreWrite marks a failure to persist an otherwise valid event.
var ErrStoreWrite = errors.New("subscription store write failed")

// Action names what an event did to the store.
type Action string

const (
	ActionUpserted        Action = "upserted"
	ActionUpdated         Action = "updated"
	ActionCanceled        Action = "canceled"
	ActionPaymentRecorded Action = "payment_recorded"
	ActionLogged          Action = "logged"
	ActionIgnored         Action = "ignored"
	ActionStale           Action = "stale"
)

// Result describes the effect of one event.
type Result struct {
	Action                 Action `json:"action"`
	ExternalSubscriptionID string `json:"external_subscription_id,omitempty"`
	UserID                 string `json:"user_id,omitempty"`
	Reason                 string `json:"reason,omitempty"`
}

// Processor fetches authoritative subscription state from the payment processor.
type Processor interface {
	GetSubscription(ctx context.Context, id string) (*billingevent.SubscriptionSnapshot, error)
}

// Store is the part of the subscription record store the reconciler writes through.
type Store interface {
	Upsert(ctx context.Context, m *models.Subscription, ch subscription.Change) error
	Update(ctx context.Context, externalID string, ch subscription.Change, mutate func(*models.Subscription)) (*models.Subscription, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	AppendPayment(ctx context.Context, p *models.PaymentTransaction) error
}

// Reconciler maps verified billing events onto store mutations.
type Reconciler struct {
	store       Store
	processor   Processor
	catalog     *types.PlanCatalog
	rejectStale bool
	log         *zap.SugaredLogger
	metrics     *metrics.Billing
	now         func() time.Time
}

func New(store Store, processor Processor, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Billing) *Reconciler {
	return &Reconciler{
		store:       store,
		processor:   processor,
		catalog:     cfg.PlanCatalog(),
		rejectStale: cfg.Billing.RejectStaleEvents,
		log:         log,
		metrics:     m,
		now:         time.Now,
	}
}

// Apply performs the store effect of ev. Errors wrap billingevent.ErrInvalidPayload
// when the event cannot be applied as delivered, ErrStoreWrite when persisting failed,
// and pass processor errors through otherwise.
func (r *Reconciler) Apply(ctx context.Context, ev *billingevent.Event) (*Result, error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.ReconcileDuration.WithLabelValues(string(ev.Type)).Observe(metrics.MillisecondsSince(start))
		}
	}()

	var (
		res *Result
		err error
	)
	switch p := ev.Payload.(type) {
	case *billingevent.CheckoutCompleted:
		res, err = r.applyCheckout(ctx, ev, p)
	case *billingevent.SubscriptionChanged:
		if ev.Type == billingevent.TypeSubscriptionDeleted {
			res, err = r.applyDeleted(ctx, ev, p)
		} else {
			res, err = r.applyChanged(ctx, ev, p)
		}
	case *billingevent.InvoiceOutcome:
		res, err = r.applyInvoice(ctx, ev, p)
	case *billingevent.PaymentIntentOutcome:
		logctx.FromCtx(ctx, r.log).Infow("payment_intent_event",
			"event_id", ev.ID, "type", ev.Type, "payment_intent_id", p.PaymentIntentID,
			"status", p.Status, "amount", p.Amount, "currency", p.Currency)
		res = &Result{Action: ActionLogged}
	default:
		logctx.FromCtx(ctx, r.log).Infow("billing_event_ignored", "event_id", ev.ID, "type", ev.Type)
		res = &Result{Action: ActionIgnored, Reason: "unhandled event type"}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Reconciler) change(ev *billingevent.Event, tier types.Tier) subscription.Change {
	return subscription.Change{
		Reason:      string(ev.Type),
		EventID:     ev.ID,
		EventAt:     ev.CreatedAt,
		CachedTier:  tier,
		RejectStale: r.rejectStale,
	}
}

func (r *Reconciler) applyCheckout(ctx context.Context, ev *billingevent.Event, p *billingevent.CheckoutCompleted) (*Result, error) {
	snap, err := r.processor.GetSubscription(ctx, p.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s: %w", p.SubscriptionID, err)
	}
	userID := p.UserID
	if userID == "" {
		userID = snap.UserID
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: checkout %s carries no user id", billingevent.ErrInvalidPayload, p.SessionID)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	m := &models.Subscription{
		ExternalSubscriptionID: snap.ID,
		UserID:                 userID,
		ExternalCustomerID:     snap.CustomerID,
	}
	if m.ExternalCustomerID == "" {
		m.ExternalCustomerID = p.CustomerID
	}
	r.applySnapshot(m, snap)
	m.CurrentPeriodStart = snap.CurrentPeriodStart
	m.CanceledAt = snap.CanceledAt

	err = r.store.Upsert(ctx, m, r.change(ev, r.catalog.CachedTierFor(snap.PriceID)))
	if res, handled := r.storeOutcome(ctx, ev, snap.ID, err); handled {
		return res, r.storeErr(err)
	}
	return &Result{Action: ActionUpserted, ExternalSubscriptionID: snap.ID, UserID: userID}, nil
}

func (r *Reconciler) applyChanged(ctx context.Context, ev *billingevent.Event, p *billingevent.SubscriptionChanged) (*Result, error) {
	snap := &p.Subscription
	tier := types.TierFree
	if snap.Status == types.SubscriptionStatusActive {
		tier = r.catalog.CachedTierFor(snap.PriceID)
	}
	updated, err := r.store.Update(ctx, snap.ID, r.change(ev, tier), func(m *models.Subscription) {
		r.applySnapshot(m, snap)
		if snap.CurrentPeriodStart != nil {
			m.CurrentPeriodStart = snap.CurrentPeriodStart
		}
		if snap.CustomerID != "" {
			m.ExternalCustomerID = snap.CustomerID
		}
	})
	if res, handled := r.storeOutcome(ctx, ev, snap.ID, err); handled {
		return res, r.storeErr(err)
	}
	return &Result{Action: ActionUpdated, ExternalSubscriptionID: snap.ID, UserID: updated.UserID}, nil
}

func (r *Reconciler) applyDeleted(ctx context.Context, ev *billingevent.Event, p *billingevent.SubscriptionChanged) (*Result, error) {
	id := p.Subscription.ID
	canceledAt := r.now().UTC()
	updated, err := r.store.Update(ctx, id, r.change(ev, types.TierFree), func(m *models.Subscription) {
		m.Status = types.SubscriptionStatusCanceled
		m.CanceledAt = &canceledAt
	})
	if res, handled := r.storeOutcome(ctx, ev, id, err); handled {
		return res, r.storeErr(err)
	}
	return &Result{Action: ActionCanceled, ExternalSubscriptionID: id, UserID: updated.UserID}, nil
}

func (r *Reconciler) applyInvoice(ctx context.Context, ev *billingevent.Event, p *billingevent.InvoiceOutcome) (*Result, error) {
	lg := logctx.FromCtx(ctx, r.log)
	if p.SubscriptionID == "" {
		lg.Infow("invoice_without_subscription", "event_id", ev.ID, "invoice_id", p.InvoiceID)
		return &Result{Action: ActionIgnored, Reason: "invoice not tied to a subscription"}, nil
	}
	row, err := r.store.GetByExternalID(ctx, p.SubscriptionID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			lg.Warnw("invoice_owner_not_found", "event_id", ev.ID, "invoice_id", p.InvoiceID, "external_subscription_id", p.SubscriptionID)
			return &Result{Action: ActionIgnored, ExternalSubscriptionID: p.SubscriptionID, Reason: "subscription not found"}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	status, amount := types.PaymentStatusSucceeded, p.AmountPaid
	if ev.Type == billingevent.TypeInvoicePaymentFailed {
		status, amount = types.PaymentStatusFailed, p.AmountDue
	}
	occurredAt := ev.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = r.now().UTC()
	}
	tx := &models.PaymentTransaction{
		UserID:                  row.UserID,
		ExternalSubscriptionID:  p.SubscriptionID,
		ExternalInvoiceID:       p.InvoiceID,
		ExternalPaymentIntentID: p.PaymentIntentID,
		EventID:                 ev.ID,
		Amount:                  types.MinorToMajor(amount, p.Currency),
		AmountMinor:             amount,
		Currency:                p.Currency,
		Status:                  status,
		OccurredAt:              occurredAt,
	}
	if err := r.store.AppendPayment(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if r.metrics != nil {
		r.metrics.PaymentTransactions.WithLabelValues(string(status), p.Currency).Inc()
	}
	lg.Infow("payment_recorded", "event_id", ev.ID, "invoice_id", p.InvoiceID, "status", status,
		"amount", tx.Amount.String(), "currency", p.Currency, "user_id", row.UserID)
	return &Result{Action: ActionPaymentRecorded, ExternalSubscriptionID: p.SubscriptionID, UserID: row.UserID}, nil
}

// applySnapshot copies the mutable subscription fields shared by every write.
func (r *Reconciler) applySnapshot(m *models.Subscription, snap *billingevent.SubscriptionSnapshot) {
	m.Status = snap.Status
	m.PlanID = snap.PriceID
	m.Tier = r.catalog.TierFor(snap.PriceID)
	m.PlanName = ""
	if plan, ok := r.catalog.Lookup(snap.PriceID); ok {
		m.PlanName = plan.Name
	}
	if snap.CurrentPeriodEnd != nil {
		m.CurrentPeriodEnd = snap.CurrentPeriodEnd
	}
	m.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
	m.TrialEnd = snap.TrialEnd
	switch {
	case snap.CancelAt != nil:
		m.CancelAt = snap.CancelAt
	case snap.CancelAtPeriodEnd:
		m.CancelAt = m.CurrentPeriodEnd
	default:
		m.CancelAt = nil
	}
}

// storeOutcome turns the expected non-write outcomes of a store call into results.
// handled is true when the caller must return immediately.
func (r *Reconciler) storeOutcome(ctx context.Context, ev *billingevent.Event, externalID string, err error) (*Result, bool) {
	if err == nil {
		return nil, false
	}
	lg := logctx.FromCtx(ctx, r.log)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		lg.Infow("subscription_event_without_row", "event_id", ev.ID, "type", ev.Type, "external_subscription_id", externalID)
		return &Result{Action: ActionIgnored, ExternalSubscriptionID: externalID, Reason: "subscription not found"}, true
	case errors.Is(err, subscription.ErrStaleEvent):
		lg.Warnw("stale_event_skipped", "event_id", ev.ID, "type", ev.Type, "external_subscription_id", externalID, "event_at", ev.CreatedAt)
		return &Result{Action: ActionStale, ExternalSubscriptionID: externalID, Reason: "event older than last applied event"}, true
	}
	return nil, true
}

func (r *Reconciler) storeErr(err error) error {
	switch {
	case err == nil, errors.Is(err, subscription.ErrSubscriptionNotFound), errors.Is(err, subscription.ErrStaleEvent):
		return nil
	case errors.Is(err, subscription.ErrInvalidPeriod):
		return fmt.Errorf("%w: %w", billingevent.ErrInvalidPayload, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreWrite, err)
}
