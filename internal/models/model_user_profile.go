package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
)

// UserProfile carries the user's cached plan tier. The subscription table stays the
// source of truth; this column only serves fast reads in the member area.
type UserProfile struct {
	UserID           string     `gorm:"column:user_id;type:varchar(64);primaryKey" json:"user_id"`
	SubscriptionTier types.Tier `gorm:"column:subscription_tier;type:varchar(32);not null;default:'free'" json:"subscription_tier"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profile"
}
