package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatflowers/membership/internal/app/service/billingconfig"
	"github.com/fatflowers/membership/internal/app/service/subscription"
	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/stripe"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/metrics"
	"github.com/fatflowers/membership/pkg/types"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	// ErrInvalidRequest is a client error detected before any processor call.
	ErrInvalidRequest = errors.New("invalid checkout request")
)

const (
	outcomeCreated  = "created"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// Request is the body of a checkout call.
type Request struct {
	PriceID    string `json:"priceId"`
	Quantity   int64  `json:"quantity,omitempty"`
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
}

// Session is the created checkout session.
type Session struct {
	URL        string `json:"url"`
	CustomerID string `json:"-"`
}

// Processor is the subset of the processor adapter used to start a purchase.
type Processor interface {
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, p stripe.CheckoutParams) (string, error)
}

// CustomerLookup returns the user's latest subscription, whose customer id is reused.
type CustomerLookup interface {
	GetLatestByUserID(ctx context.Context, userID string) (*models.Subscription, error)
}

// Service starts subscription purchases. It never writes to the subscription store.
type Service struct {
	processor  Processor
	customers  CustomerLookup
	catalog    *types.PlanCatalog
	successURL string
	cancelURL  string
	log        *zap.SugaredLogger
	metrics    *metrics.Billing
}

func NewService(processor Processor, customers CustomerLookup, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Billing) *Service {
	return &Service{
		processor:  processor,
		customers:  customers,
		catalog:    cfg.PlanCatalog(),
		successURL: cfg.Stripe.SuccessURL,
		cancelURL:  cfg.Stripe.CancelURL,
		log:        log,
		metrics:    m,
	}
}

// Validate checks req without touching the processor.
func (s *Service) Validate(req *Request) error {
	if req == nil || strings.TrimSpace(req.PriceID) == "" {
		return fmt.Errorf("%w: price id required", ErrInvalidRequest)
	}
	if req.Quantity < 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	if len(s.catalog.Plans()) > 0 {
		if _, ok := s.catalog.Lookup(req.PriceID); !ok {
			return fmt.Errorf("%w: unknown price %s", ErrInvalidRequest, req.PriceID)
		}
	}
	return nil
}

// Create resolves the caller's processor customer and opens a checkout session.
// Errors wrap ErrInvalidRequest, billingconfig.ErrConfigMissing or stripe.ErrUpstream.
func (s *Service) Create(ctx context.Context, id Identity, req *Request) (*Session, error) {
	log := logctx.FromCtx(ctx, s.log)
	if err := s.Validate(req); err != nil {
		s.count(outcomeRejected)
		return nil, err
	}
	if id.UserID == "" {
		s.count(outcomeRejected)
		return nil, fmt.Errorf("%w: user id required", ErrInvalidRequest)
	}

	successURL := firstNonEmpty(req.SuccessURL, s.successURL)
	cancelURL := firstNonEmpty(req.CancelURL, s.cancelURL)
	if successURL == "" || cancelURL == "" {
		s.count(outcomeFailed)
		return nil, fmt.Errorf("%w: checkout redirect urls", billingconfig.ErrConfigMissing)
	}

	customerID, err := s.resolveCustomer(ctx, id)
	if err != nil {
		s.count(outcomeFailed)
		log.Errorw("checkout_customer_failed", "user_id", id.UserID, "err", err)
		return nil, err
	}

	url, err := s.processor.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		CustomerID: customerID,
		UserID:     id.UserID,
		PriceID:    req.PriceID,
		Quantity:   req.Quantity,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		s.count(outcomeFailed)
		log.Errorw("checkout_session_failed", "user_id", id.UserID, "price_id", req.PriceID, "err", err)
		return nil, err
	}
	s.count(outcomeCreated)
	log.Infow("checkout_session_created", "user_id", id.UserID, "customer_id", customerID, "price_id", req.PriceID)
	return &Session{URL: url, CustomerID: customerID}, nil
}

// resolveCustomer reuses the customer of the user's latest subscription, then a
// customer with the same email, and creates one otherwise.
func (s *Service) resolveCustomer(ctx context.Context, id Identity) (string, error) {
	if s.customers != nil {
		row, err := s.customers.GetLatestByUserID(ctx, id.UserID)
		switch {
		case err == nil && row.ExternalCustomerID != "":
			return row.ExternalCustomerID, nil
		case err != nil && !errors.Is(err, subscription.ErrSubscriptionNotFound):
			return "", fmt.Errorf("failed to look up customer: %w", err)
		}
	}
	customerID, err := s.processor.FindCustomerByEmail(ctx, id.Email)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}
	return s.processor.CreateCustomer(ctx, id.Email, id.UserID)
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.CheckoutSessions.WithLabelValues(outcome).Inc()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func newService(processor *stripe.Client, store *subscription.Service, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Billing) *Service {
	return NewService(processor, store, cfg, log, m)
}

var Module = fx.Options(
	fx.Provide(newService),
)
