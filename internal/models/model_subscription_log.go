package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubscriptionLog records changes to subscription rows.
// Use case: troubleshooting entitlement drift.
type SubscriptionLog struct {
	ID                     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID                 string `gorm:"column:user_id;type:varchar(64);index:idx_subscription_log_user,priority:1;not null"`
	ExternalSubscriptionID string `gorm:"column:external_subscription_id;type:varchar(128);index;not null"`
	// Reason is the processor event type that caused the change.
	Reason  string `gorm:"column:reason;type:varchar(64);not null"`
	EventID string `gorm:"column:event_id;type:varchar(128)"`
	// Before stores subscription data before the change in JSON format.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'"`
	// After stores subscription data after the change in JSON format.
	After     datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'"`
	CreatedAt time.Time                         `gorm:"index:idx_subscription_log_user,priority:2"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
