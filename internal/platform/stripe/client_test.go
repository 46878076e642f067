package stripe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/fatflowers/membership/internal/app/service/billingevent"
	"github.com/fatflowers/membership/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripelib "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

type staticKey struct {
	key string
	err error
}

func (s staticKey) StripeSecretKey(context.Context) (string, error) { return s.key, s.err }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	backend := stripelib.GetBackendWithConfig(stripelib.APIBackend, &stripelib.BackendConfig{
		URL:               stripelib.String(srv.URL),
		MaxNetworkRetries: stripelib.Int64(0),
		LeveledLogger:     &stripelib.LeveledLogger{Level: stripelib.LevelNull},
	})
	return NewClient(staticKey{key: "sk_test_123"}, zap.NewNop().Sugar()).
		WithBackends(&stripelib.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestSnapshotFromSubscription(t *testing.T) {
	sub := &stripelib.Subscription{
		ID:                "sub_1",
		Status:            stripelib.SubscriptionStatusTrialing,
		Customer:          &stripelib.Customer{ID: "cus_1"},
		CancelAtPeriodEnd: true,
		CancelAt:          1769904000,
		TrialEnd:          1767830400,
		Metadata:          map[string]string{"user_id": "u1"},
		Items: &stripelib.SubscriptionItemList{Data: []*stripelib.SubscriptionItem{{
			Price:              &stripelib.Price{ID: "price_daily"},
			CurrentPeriodStart: 1767225600,
			CurrentPeriodEnd:   1769904000,
		}}},
	}

	snap, err := SnapshotFromSubscription(sub)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusTrialing, snap.Status)
	assert.Equal(t, "cus_1", snap.CustomerID)
	assert.Equal(t, "price_daily", snap.PriceID)
	assert.Equal(t, "u1", snap.UserID)
	assert.Equal(t, time.Unix(1769904000, 0).UTC(), *snap.CurrentPeriodEnd)
	assert.Nil(t, snap.CanceledAt)

	sub.Items.Data[0].CurrentPeriodEnd = 1767225600
	_, err = SnapshotFromSubscription(sub)
	assert.ErrorIs(t, err, billingevent.ErrInvalidPayload)

	_, err = SnapshotFromSubscription(&stripelib.Subscription{ID: "sub_1", Status: "weird"})
	assert.ErrorIs(t, err, billingevent.ErrInvalidPayload)
}

func TestGetSubscription(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"sub_1","object":"subscription","status":"active","customer":"cus_1",
			"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","price":{"id":"price_max","object":"price"},
			"current_period_start":1767225600,"current_period_end":1769904000}]}}`)
	})

	snap, err := c.GetSubscription(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "price_max", snap.PriceID)
	assert.Equal(t, "cus_1", snap.CustomerID)
	assert.Equal(t, types.SubscriptionStatusActive, snap.Status)
}

func TestCreateCheckoutSession(t *testing.T) {
	var form url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cs_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_1"}`)
	})

	u, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{
		CustomerID: "cus_1", UserID: "u1", PriceID: "price_core",
		SuccessURL: "https://app.example.com/ok", CancelURL: "https://app.example.com/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", u)
	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, "u1", form.Get("client_reference_id"))
	assert.Equal(t, "price_core", form.Get("line_items[0][price]"))
	assert.Equal(t, "1", form.Get("line_items[0][quantity]"))
	assert.Equal(t, "u1", form.Get("subscription_data[metadata][user_id]"))
}

func TestUpstreamErrorForwarded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_request_error","message":"No such price: 'price_x'"}}`)
	})

	_, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{CustomerID: "cus_1", UserID: "u1", PriceID: "price_x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "No such price")
}

func TestMissingKeyIsNotUpstream(t *testing.T) {
	missing := errors.New("billing configuration missing")
	c := NewClient(staticKey{err: missing}, zap.NewNop().Sugar())

	_, err := c.CreateCustomer(context.Background(), "a@example.com", "u1")
	assert.ErrorIs(t, err, missing)
	assert.NotErrorIs(t, err, ErrUpstream)
}
