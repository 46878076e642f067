package entitlement

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fatflowers/membership/internal/app/service/subscription"
	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"

	"go.uber.org/fx"
)

// Decision is the computed entitlement of one user at one instant.
type Decision struct {
	UserID                 string                   `json:"user_id"`
	HasSubscription        bool                     `json:"has_subscription"`
	ExternalSubscriptionID string                   `json:"external_subscription_id,omitempty"`
	Status                 types.SubscriptionStatus `json:"status,omitempty"`
	Tier                   types.Tier               `json:"tier"`
	PlanName               string                   `json:"plan_name,omitempty"`
	Active                 bool                     `json:"active"`
	PastDue                bool                     `json:"past_due"`
	DaysRemaining          int                      `json:"days_remaining"`
	CancelAtPeriodEnd      bool                     `json:"cancel_at_period_end"`
	CurrentPeriodEnd       *time.Time               `json:"current_period_end,omitempty"`
}

// Evaluate computes the decision for row, which may be nil.
func Evaluate(userID string, row *models.Subscription, now time.Time) *Decision {
	d := &Decision{UserID: userID, Tier: types.TierFree}
	if row == nil {
		return d
	}
	d.HasSubscription = true
	d.ExternalSubscriptionID = row.ExternalSubscriptionID
	d.Status = row.Status
	d.PlanName = row.PlanName
	d.Active = HasActiveSubscription(row)
	d.PastDue = IsPastDue(row)
	d.DaysRemaining = DaysRemaining(row, now)
	d.CancelAtPeriodEnd = row.CancelAtPeriodEnd
	d.CurrentPeriodEnd = row.CurrentPeriodEnd
	if d.Active {
		d.Tier = types.ParseTier(string(row.Tier))
	}
	return d
}

// HasActiveSubscription is true for active and trialing subscriptions.
func HasActiveSubscription(row *models.Subscription) bool {
	return row != nil && row.Status.GrantsAccess()
}

func IsPastDue(row *models.Subscription) bool {
	return row != nil && row.Status == types.SubscriptionStatusPastDue
}

// DaysRemaining is the number of started days until the period end, never negative.
// Without a subscription or a period end it is 0.
func DaysRemaining(row *models.Subscription, now time.Time) int {
	if row == nil || row.CurrentPeriodEnd == nil {
		return 0
	}
	left := row.CurrentPeriodEnd.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// MeetsRequiredTier is false unless the subscription grants access and its tier
// ranks at least as high as required. Unrecognized tiers rank 0 and never pass.
func MeetsRequiredTier(row *models.Subscription, required types.Tier) bool {
	if !HasActiveSubscription(row) {
		return false
	}
	have := types.ParseTier(string(row.Tier)).Rank()
	return have > 0 && have >= required.Rank()
}

// Reader fetches the most recent subscription of a user.
type Reader interface {
	GetLatestByUserID(ctx context.Context, userID string) (*models.Subscription, error)
}

// Service answers entitlement queries from the subscription record store.
type Service struct {
	reader Reader
	now    func() time.Time
}

func NewService(reader Reader) *Service {
	return &Service{reader: reader, now: time.Now}
}

// Latest returns the user's most recently created subscription, nil when none exists.
func (s *Service) Latest(ctx context.Context, userID string) (*models.Subscription, error) {
	row, err := s.reader.GetLatestByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

// Decide computes the current decision for userID.
func (s *Service) Decide(ctx context.Context, userID string) (*Decision, error) {
	row, err := s.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Evaluate(userID, row, s.now()), nil
}

// Check reports whether userID meets the required tier.
func (s *Service) Check(ctx context.Context, userID string, required types.Tier) (bool, error) {
	row, err := s.Latest(ctx, userID)
	if err != nil {
		return false, err
	}
	return MeetsRequiredTier(row, required), nil
}

func newService(store *subscription.Service) *Service { return NewService(store) }

var Module = fx.Options(
	fx.Provide(newService),
)
