package models

import "time"

// Keys of billing settings managed from the admin panel.
const (
	BillingSettingStripeSecretKey     = "stripe_secret_key"
	BillingSettingStripeWebhookSecret = "stripe_webhook_secret"
)

// BillingSetting is a key/value row of the live billing configuration.
type BillingSetting struct {
	Key       string    `gorm:"column:setting_key;type:varchar(64);primaryKey" json:"key"`
	Value     string    `gorm:"column:value;type:text;not null" json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BillingSetting) TableName() string {
	return "billing_setting"
}
