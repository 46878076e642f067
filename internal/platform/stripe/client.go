package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/billingevent"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/types"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrUpstream wraps every error reported by the processor API.
var ErrUpstream = errors.New("payment processor request failed")

// KeyResolver yields the processor API key. Implemented by billingconfig.Resolver.
type KeyResolver interface {
	StripeSecretKey(ctx context.Context) (string, error)
}

// CheckoutParams describes a subscription checkout session.
type CheckoutParams struct {
	CustomerID string
	UserID     string
	PriceID    string
	Quantity   int64
	SuccessURL string
	CancelURL  string
}

// Client is the processor adapter. The API key is resolved on every call so a
// rotated key takes effect after the resolver cache is invalidated.
type Client struct {
	keys     KeyResolver
	log      *zap.SugaredLogger
	backends *stripelib.Backends
}

func NewClient(keys KeyResolver, log *zap.SugaredLogger) *Client {
	return &Client{keys: keys, log: log}
}

// WithBackends points the adapter at custom API backends.
func (c *Client) WithBackends(b *stripelib.Backends) *Client {
	c.backends = b
	return c
}

func (c *Client) api(ctx context.Context) (*client.API, error) {
	key, err := c.keys.StripeSecretKey(ctx)
	if err != nil {
		return nil, err
	}
	sc := &client.API{}
	sc.Init(key, c.backends)
	return sc, nil
}

// GetSubscription fetches the full state of a processor subscription.
func (c *Client) GetSubscription(ctx context.Context, id string) (*billingevent.SubscriptionSnapshot, error) {
	sc, err := c.api(ctx)
	if err != nil {
		return nil, err
	}
	params := &stripelib.SubscriptionParams{}
	params.Context = ctx
	sub, err := sc.Subscriptions.Get(id, params)
	if err != nil {
		return nil, upstream("get subscription", err)
	}
	snap, err := SnapshotFromSubscription(sub)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// FindCustomerByEmail returns the id of the first customer with email, or "".
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", nil
	}
	sc, err := c.api(ctx)
	if err != nil {
		return "", err
	}
	params := &stripelib.CustomerListParams{Email: stripelib.String(email)}
	params.Context = ctx
	params.Limit = stripelib.Int64(1)
	it := sc.Customers.List(params)
	if it.Next() {
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", upstream("list customers", err)
	}
	return "", nil
}

// CreateCustomer creates a processor customer tagged with the internal user id.
func (c *Client) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	sc, err := c.api(ctx)
	if err != nil {
		return "", err
	}
	params := &stripelib.CustomerParams{
		Metadata: map[string]string{"user_id": userID},
	}
	if email != "" {
		params.Email = stripelib.String(email)
	}
	params.Context = ctx
	cus, err := sc.Customers.New(params)
	if err != nil {
		return "", upstream("create customer", err)
	}
	logctx.FromCtx(ctx, c.log).Infow("stripe_customer_created", "customer_id", cus.ID, "user_id", userID)
	return cus.ID, nil
}

// CreateCheckoutSession creates a subscription-mode checkout session and returns
// its redirect URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	sc, err := c.api(ctx)
	if err != nil {
		return "", err
	}
	quantity := p.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	meta := map[string]string{"user_id": p.UserID}
	params := &stripelib.CheckoutSessionParams{
		Mode:              stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		Customer:          stripelib.String(p.CustomerID),
		ClientReferenceID: stripelib.String(p.UserID),
		SuccessURL:        stripelib.String(p.SuccessURL),
		CancelURL:         stripelib.String(p.CancelURL),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{Price: stripelib.String(p.PriceID), Quantity: stripelib.Int64(quantity)},
		},
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{Metadata: meta},
	}
	params.Metadata = meta
	params.Context = ctx
	sess, err := sc.CheckoutSessions.New(params)
	if err != nil {
		return "", upstream("create checkout session", err)
	}
	return sess.URL, nil
}

// SnapshotFromSubscription maps a processor subscription onto the reconciler's snapshot.
func SnapshotFromSubscription(s *stripelib.Subscription) (*billingevent.SubscriptionSnapshot, error) {
	if s == nil || s.ID == "" {
		return nil, fmt.Errorf("%w: empty subscription", billingevent.ErrInvalidPayload)
	}
	status, ok := types.ParseSubscriptionStatus(string(s.Status))
	if !ok {
		return nil, fmt.Errorf("%w: subscription status %q", billingevent.ErrInvalidPayload, s.Status)
	}
	snap := &billingevent.SubscriptionSnapshot{
		ID:                s.ID,
		Status:            status,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CancelAt:          unixPtr(s.CancelAt),
		CanceledAt:        unixPtr(s.CanceledAt),
		TrialEnd:          unixPtr(s.TrialEnd),
		UserID:            s.Metadata["user_id"],
	}
	if s.Customer != nil {
		snap.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0] != nil {
		item := s.Items.Data[0]
		if item.Price != nil {
			snap.PriceID = item.Price.ID
		}
		snap.CurrentPeriodStart = unixPtr(item.CurrentPeriodStart)
		snap.CurrentPeriodEnd = unixPtr(item.CurrentPeriodEnd)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func upstream(op string, err error) error {
	var se *stripelib.Error
	if errors.As(err, &se) && se.Msg != "" {
		return fmt.Errorf("%w: %s: %s", ErrUpstream, op, se.Msg)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}

func unixPtr(v int64) *time.Time {
	if v <= 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}

func newClient(keys *billingconfig.Resolver, log *zap.SugaredLogger) *Client {
	return NewClient(keys, log)
}

var Module = fx.Options(
	fx.Provide(newClient),
)
