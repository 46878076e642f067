package models

import (
	"time"

	"github.com/fatflowers/membership/pkg/types"
	"github.com/shopspring/decimal"
)

// PaymentTransaction is one invoice outcome. Rows are written once and never updated.
type PaymentTransaction struct {
	ID                     string `gorm:"column:id;type:uuid;primary_key;index:idx_payment_user_id,priority:2,sort:desc" json:"id"`
	UserID                 string `gorm:"column:user_id;type:varchar(64);not null;index:idx_payment_user_id,priority:1" json:"user_id"`
	ExternalSubscriptionID string `gorm:"column:external_subscription_id;type:varchar(128);not null;index" json:"external_subscription_id"`
	ExternalInvoiceID      string `gorm:"column:external_invoice_id;type:varchar(128);not null" json:"external_invoice_id"`
	// ExternalPaymentIntentID is empty when the processor no longer reports it on invoices.
	ExternalPaymentIntentID string `gorm:"column:external_payment_intent_id;type:varchar(128)" json:"external_payment_intent_id"`
	EventID                 string `gorm:"column:event_id;type:varchar(128)" json:"event_id"`

	// Amount is in major currency units; AmountMinor keeps the processor value.
	Amount      decimal.Decimal     `gorm:"column:amount;type:numeric(20,4);not null" json:"amount"`
	AmountMinor int64               `gorm:"column:amount_minor;type:bigint;not null" json:"amount_minor"`
	Currency    string              `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	Status      types.PaymentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	OccurredAt  time.Time           `gorm:"column:occurred_at;not null" json:"occurred_at"`

	CreatedAt time.Time `json:"created_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transaction"
}
