package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/subscription"
	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/db/dbtest"
	"github.com/fatflowers/membership/internal/platform/stripe"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/types"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	existing  map[string]string
	created   []string
	sessions  []stripe.CheckoutParams
	createErr error
}

func (f *fakeProcessor) FindCustomerByEmail(_ context.Context, email string) (string, error) {
	return f.existing[email], nil
}

func (f *fakeProcessor) CreateCustomer(_ context.Context, email, userID string) (string, error) {
	id := fmt.Sprintf("cus_%d", len(f.created)+1)
	f.created = append(f.created, userID)
	return id, nil
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, p stripe.CheckoutParams) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.sessions = append(f.sessions, p)
	return "https://checkout.stripe.com/c/pay/cs_test_" + p.PriceID, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Stripe: config.StripeConfig{
			SuccessURL: "https://app.example.com/billing/success",
			CancelURL:  "https://app.example.com/billing",
		},
		Plans: []*types.Plan{
			{PriceID: "price_core", Tier: types.TierCore, Name: "Core"},
			{PriceID: "price_max", Tier: types.TierMax, Name: "Max"},
		},
	}
}

func newTestService(t *testing.T, p *fakeProcessor, cfg *config.Config) (*Service, *subscription.Service, *metrics.Billing) {
	t.Helper()
	store := subscription.NewService(dbtest.New(t), zap.NewNop().Sugar())
	m := metrics.NewNopBilling()
	return NewService(p, store, cfg, zap.NewNop().Sugar(), m), store, m
}

func TestCreate_NewCustomer(t *testing.T) {
	p := &fakeProcessor{}
	s, store, m := newTestService(t, p, testConfig())

	sess, err := s.Create(context.Background(), Identity{UserID: "u1", Email: "a@example.com"}, &Request{PriceID: "price_core"})
	require.NoError(t, err)
	assert.Regexp(t, `^https://`, sess.URL)
	assert.Equal(t, "cus_1", sess.CustomerID)
	assert.Equal(t, []string{"u1"}, p.created)

	require.Len(t, p.sessions, 1)
	got := p.sessions[0]
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "https://app.example.com/billing/success", got.SuccessURL)
	assert.Equal(t, "https://app.example.com/billing", got.CancelURL)

	rows, err := store.ListByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, rows, "checkout never writes subscriptions")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutSessions.WithLabelValues(outcomeCreated)))
}

func TestCreate_ReusesCustomer(t *testing.T) {
	t.Run("from latest subscription", func(t *testing.T) {
		p := &fakeProcessor{existing: map[string]string{"a@example.com": "cus_by_email"}}
		s, store, _ := newTestService(t, p, testConfig())
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		end := start.Add(30 * 24 * time.Hour)
		require.NoError(t, store.Upsert(context.Background(), &models.Subscription{
			ExternalSubscriptionID: "sub_1",
			UserID:                 "u1",
			ExternalCustomerID:     "cus_from_row",
			Status:                 types.SubscriptionStatusCanceled,
			CurrentPeriodStart:     &start,
			CurrentPeriodEnd:       &end,
		}, subscription.Change{Reason: "seed"}))

		sess, err := s.Create(context.Background(), Identity{UserID: "u1", Email: "a@example.com"}, &Request{PriceID: "price_max", Quantity: 2})
		require.NoError(t, err)
		assert.Equal(t, "cus_from_row", sess.CustomerID)
		assert.Empty(t, p.created)
		assert.EqualValues(t, 2, p.sessions[0].Quantity)
	})

	t.Run("by email", func(t *testing.T) {
		p := &fakeProcessor{existing: map[string]string{"a@example.com": "cus_by_email"}}
		s, _, _ := newTestService(t, p, testConfig())

		sess, err := s.Create(context.Background(), Identity{UserID: "u1", Email: "a@example.com"}, &Request{PriceID: "price_core"})
		require.NoError(t, err)
		assert.Equal(t, "cus_by_email", sess.CustomerID)
		assert.Empty(t, p.created)
	})
}

func TestCreate_RejectsBeforeProcessorCall(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		req  *Request
	}{
		{name: "nil request", id: Identity{UserID: "u1"}, req: nil},
		{name: "missing price", id: Identity{UserID: "u1"}, req: &Request{}},
		{name: "blank price", id: Identity{UserID: "u1"}, req: &Request{PriceID: "  "}},
		{name: "unknown price", id: Identity{UserID: "u1"}, req: &Request{PriceID: "price_gold"}},
		{name: "negative quantity", id: Identity{UserID: "u1"}, req: &Request{PriceID: "price_core", Quantity: -1}},
		{name: "anonymous", id: Identity{}, req: &Request{PriceID: "price_core"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{}
			s, _, m := newTestService(t, p, testConfig())

			_, err := s.Create(context.Background(), tt.id, tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Empty(t, p.created)
			assert.Empty(t, p.sessions)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutSessions.WithLabelValues(outcomeRejected)))
		})
	}
}

func TestCreate_AnyPriceWithoutCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.Plans = nil
	p := &fakeProcessor{}
	s, _, _ := newTestService(t, p, cfg)

	_, err := s.Create(context.Background(), Identity{UserID: "u1"}, &Request{PriceID: "price_anything"})
	require.NoError(t, err)
}

func TestCreate_Failures(t *testing.T) {
	t.Run("missing redirect urls", func(t *testing.T) {
		cfg := testConfig()
		cfg.Stripe = config.StripeConfig{}
		p := &fakeProcessor{}
		s, _, _ := newTestService(t, p, cfg)

		_, err := s.Create(context.Background(), Identity{UserID: "u1"}, &Request{PriceID: "price_core"})
		assert.ErrorIs(t, err, billingconfig.ErrConfigMissing)

		sess, err := s.Create(context.Background(), Identity{UserID: "u1"}, &Request{
			PriceID:    "price_core",
			SuccessURL: "https://app.example.com/ok",
			CancelURL:  "https://app.example.com/no",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, sess.URL)
	})

	t.Run("upstream error forwarded", func(t *testing.T) {
		upstreamErr := fmt.Errorf("%w: create checkout session: No such price", stripe.ErrUpstream)
		p := &fakeProcessor{createErr: upstreamErr}
		s, _, m := newTestService(t, p, testConfig())

		_, err := s.Create(context.Background(), Identity{UserID: "u1"}, &Request{PriceID: "price_core"})
		assert.ErrorIs(t, err, stripe.ErrUpstream)
		assert.True(t, errors.Is(err, upstreamErr))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutSessions.WithLabelValues(outcomeFailed)))
	})
}
