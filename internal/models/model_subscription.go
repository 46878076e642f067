package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
)

// Subscription is the entitlement record of one processor subscription.
// Rows are upserted by ExternalSubscriptionID and never deleted; cancellation is a
// status transition.
type Subscription struct {
	ID                     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ExternalSubscriptionID string `gorm:"column:external_subscription_id;type:varchar(128);not null;uniqueIndex" json:"external_subscription_id"`
	UserID                 string `gorm:"column:user_id;type:varchar(64);not null;index:idx_subscription_user_created,priority:1" json:"user_id"`
	ExternalCustomerID     string `gorm:"column:external_customer_id;type:varchar(128)" json:"external_customer_id"`

	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	PlanID string                   `gorm:"column:plan_id;type:varchar(128)" json:"plan_id"`
	// PlanName is the display name from the plan catalog, empty for unknown prices.
	PlanName string `gorm:"column:plan_name;type:varchar(128)" json:"plan_name"`
	// Tier is resolved from PlanID through the plan catalog at write time.
	Tier types.Tier `gorm:"column:tier;type:varchar(32)" json:"tier"`

	CurrentPeriodStart *time.Time `gorm:"column:current_period_start;default:null" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	CancelAtPeriodEnd  bool       `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	CancelAt           *time.Time `gorm:"column:cancel_at;default:null" json:"cancel_at"`
	CanceledAt         *time.Time `gorm:"column:canceled_at;default:null" json:"canceled_at"`
	TrialEnd           *time.Time `gorm:"column:trial_end;default:null" json:"trial_end"`

	// LastEventAt is the processor creation time of the last applied event.
	LastEventAt *time.Time `gorm:"column:last_event_at;default:null" json:"last_event_at"`

	CreatedAt time.Time `gorm:"index:idx_subscription_user_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}
