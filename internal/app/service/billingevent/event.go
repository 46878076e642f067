package billingevent

import (
	"errors"
	"time"

	"github.com/fatflowers/membership/pkg/types"
)

var (
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	// ErrInvalidPayload means the payload is signed but does not match the shape
	// declared by its event type.
	ErrInvalidPayload = errors.New("invalid event payload")
)

type Type string

const (
	TypeCheckoutSessionCompleted Type = "checkout.session.completed"
	TypeSubscriptionCreated      Type = "customer.subscription.created"
	TypeSubscriptionUpdated      Type = "customer.subscription.updated"
	TypeSubscriptionDeleted      Type = "customer.subscription.deleted"
	TypeInvoicePaid              Type = "invoice.paid"
	TypeInvoicePaymentFailed     Type = "invoice.payment_failed"
	TypePaymentIntentSucceeded   Type = "payment_intent.succeeded"
	TypePaymentIntentFailed      Type = "payment_intent.payment_failed"
)

// Event is a verified processor notification. Payload holds exactly one of the
// variant types below, chosen by Type.
type Event struct {
	ID        string
	Type      Type
	CreatedAt time.Time
	Livemode  bool
	// Raw is the data.object JSON of the notification.
	Raw     []byte
	Payload Payload
}

// Payload is implemented by every event variant.
type Payload interface {
	// SubscriptionRef returns the external subscription id the event refers to, if any.
	SubscriptionRef() string
}

// CheckoutCompleted is the payload of checkout.session.completed.
type CheckoutCompleted struct {
	SessionID      string
	SubscriptionID string
	CustomerID     string
	CustomerEmail  string
	// UserID comes from metadata.user_id or client_reference_id; it may be empty
	// when only the subscription metadata carries it.
	UserID string
}

func (p *CheckoutCompleted) SubscriptionRef() string { return p.SubscriptionID }

// SubscriptionSnapshot is the state of a processor subscription as carried by
// subscription events or fetched from the processor API.
type SubscriptionSnapshot struct {
	ID                 string
	CustomerID         string
	Status             types.SubscriptionStatus
	PriceID            string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CancelAt           *time.Time
	CanceledAt         *time.Time
	TrialEnd           *time.Time
	// UserID is read from metadata.user_id.
	UserID string
}

// SubscriptionChanged is the payload of customer.subscription.created/updated/deleted.
type SubscriptionChanged struct {
	Subscription SubscriptionSnapshot
}

func (p *SubscriptionChanged) SubscriptionRef() string { return p.Subscription.ID }

// InvoiceOutcome is the payload of invoice.paid and invoice.payment_failed.
// Amounts are in the currency's minor unit.
type InvoiceOutcome struct {
	InvoiceID       string
	SubscriptionID  string
	CustomerID      string
	PaymentIntentID string
	Currency        string
	AmountPaid      int64
	AmountDue       int64
}

func (p *InvoiceOutcome) SubscriptionRef() string { return p.SubscriptionID }

// PaymentIntentOutcome is the payload of payment_intent events. It is logged only.
type PaymentIntentOutcome struct {
	PaymentIntentID string
	CustomerID      string
	Amount          int64
	Currency        string
	Status          string
}

func (p *PaymentIntentOutcome) SubscriptionRef() string { return "" }

// Unhandled is the payload of event types the service does not act on.
type Unhandled struct{}

func (p *Unhandled) SubscriptionRef() string { return "" }

// Handled reports whether the service acts on t.
func (t Type) Handled() bool {
	switch t {
	case TypeCheckoutSessionCompleted, TypeSubscriptionCreated, TypeSubscriptionUpdated,
		TypeSubscriptionDeleted, TypeInvoicePaid, TypeInvoicePaymentFailed,
		TypePaymentIntentSucceeded, TypePaymentIntentFailed:
		return true
	}
	return false
}
