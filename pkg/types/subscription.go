package types

import "strings"

// SubscriptionStatus mirrors the processor's subscription states.
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

var subscriptionStatuses = map[SubscriptionStatus]struct{}{
	SubscriptionStatusIncomplete:        {},
	SubscriptionStatusIncompleteExpired: {},
	SubscriptionStatusTrialing:          {},
	SubscriptionStatusActive:            {},
	SubscriptionStatusPastDue:           {},
	SubscriptionStatusCanceled:          {},
	SubscriptionStatusUnpaid:            {},
}

// ParseSubscriptionStatus returns the status for s, or false when s is not one of the
// processor states.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, bool) {
	st := SubscriptionStatus(strings.TrimSpace(s))
	_, ok := subscriptionStatuses[st]
	return st, ok
}

// GrantsAccess reports whether the status entitles the user to paid features.
func (s SubscriptionStatus) GrantsAccess() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Terminal states expect no further transitions, although writes are not refused.
func (s SubscriptionStatus) Terminal() bool {
	switch s {
	case SubscriptionStatusCanceled, SubscriptionStatusIncompleteExpired, SubscriptionStatusUnpaid:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)
