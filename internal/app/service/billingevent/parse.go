package billingevent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/membership/pkg/types"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Parse verifies the signature header against secret and decodes the event.
func Parse(payload []byte, sigHeader, secret string) (*Event, error) {
	if strings.TrimSpace(sigHeader) == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrSignatureInvalid)
	}
	se, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return Decode(&se)
}

// Decode turns a verified processor event into its typed variant.
func Decode(se *stripelib.Event) (*Event, error) {
	if se == nil || se.ID == "" || se.Type == "" {
		return nil, fmt.Errorf("%w: event id and type required", ErrInvalidPayload)
	}
	ev := &Event{
		ID:       se.ID,
		Type:     Type(se.Type),
		Livemode: se.Livemode,
	}
	if se.Created > 0 {
		ev.CreatedAt = time.Unix(se.Created, 0).UTC()
	}
	if se.Data != nil {
		ev.Raw = se.Data.Raw
	}

	var err error
	switch ev.Type {
	case TypeCheckoutSessionCompleted:
		ev.Payload, err = decodeCheckout(ev.Raw)
	case TypeSubscriptionCreated, TypeSubscriptionUpdated, TypeSubscriptionDeleted:
		ev.Payload, err = decodeSubscription(ev.Raw)
	case TypeInvoicePaid, TypeInvoicePaymentFailed:
		ev.Payload, err = decodeInvoice(ev.Raw)
	case TypePaymentIntentSucceeded, TypePaymentIntentFailed:
		ev.Payload, err = decodePaymentIntent(ev.Raw)
	default:
		ev.Payload = &Unhandled{}
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", ev.Type, ev.ID, err)
	}
	return ev, nil
}

// expandable accepts either an id string or an expanded object carrying "id".
type expandable string

func (e *expandable) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandable(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandable(obj.ID)
	return nil
}

type wireCheckoutSession struct {
	Object            string            `json:"object"`
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          expandable        `json:"customer"`
	Subscription      expandable        `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	CustomerEmail     string            `json:"customer_email"`
	CustomerDetails   *struct{ Email string `json:"email"` } `json:"customer_details"`
	Metadata          map[string]string `json:"metadata"`
}

type wireSubscription struct {
	Object             string     `json:"object"`
	ID                 string     `json:"id"`
	Customer           expandable `json:"customer"`
	Status             string     `json:"status"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CancelAt           *int64     `json:"cancel_at"`
	CanceledAt         *int64     `json:"canceled_at"`
	TrialEnd           *int64     `json:"trial_end"`
	CurrentPeriodStart *int64     `json:"current_period_start"`
	CurrentPeriodEnd   *int64     `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			CurrentPeriodStart *int64 `json:"current_period_start"`
			CurrentPeriodEnd   *int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

type wireInvoice struct {
	Object        string     `json:"object"`
	ID            string     `json:"id"`
	Customer      expandable `json:"customer"`
	Subscription  expandable `json:"subscription"`
	PaymentIntent expandable `json:"payment_intent"`
	Currency      string     `json:"currency"`
	AmountPaid    int64      `json:"amount_paid"`
	AmountDue     int64      `json:"amount_due"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription expandable `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

type wirePaymentIntent struct {
	Object   string     `json:"object"`
	ID       string     `json:"id"`
	Customer expandable `json:"customer"`
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	Status   string     `json:"status"`
}

func unmarshalObject(raw []byte, want string, v interface{}, object func() string) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty data.object", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if got := object(); got != want {
		return fmt.Errorf("%w: object %q, want %q", ErrInvalidPayload, got, want)
	}
	return nil
}

func decodeCheckout(raw []byte) (*CheckoutCompleted, error) {
	var w wireCheckoutSession
	if err := unmarshalObject(raw, "checkout.session", &w, func() string { return w.Object }); err != nil {
		return nil, err
	}
	if w.ID == "" || w.Subscription == "" {
		return nil, fmt.Errorf("%w: checkout session without id or subscription", ErrInvalidPayload)
	}
	p := &CheckoutCompleted{
		SessionID:      w.ID,
		SubscriptionID: string(w.Subscription),
		CustomerID:     string(w.Customer),
		CustomerEmail:  w.CustomerEmail,
		UserID:         strings.TrimSpace(w.Metadata["user_id"]),
	}
	if p.UserID == "" {
		p.UserID = strings.TrimSpace(w.ClientReferenceID)
	}
	if p.CustomerEmail == "" && w.CustomerDetails != nil {
		p.CustomerEmail = w.CustomerDetails.Email
	}
	return p, nil
}

func decodeSubscription(raw []byte) (*SubscriptionChanged, error) {
	var w wireSubscription
	if err := unmarshalObject(raw, "subscription", &w, func() string { return w.Object }); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, fmt.Errorf("%w: subscription without id", ErrInvalidPayload)
	}
	status, ok := types.ParseSubscriptionStatus(w.Status)
	if !ok {
		return nil, fmt.Errorf("%w: subscription status %q", ErrInvalidPayload, w.Status)
	}

	snap := SubscriptionSnapshot{
		ID:                 w.ID,
		CustomerID:         string(w.Customer),
		Status:             status,
		CancelAtPeriodEnd:  w.CancelAtPeriodEnd,
		CancelAt:           unixPtr(w.CancelAt),
		CanceledAt:         unixPtr(w.CanceledAt),
		TrialEnd:           unixPtr(w.TrialEnd),
		CurrentPeriodStart: unixPtr(w.CurrentPeriodStart),
		CurrentPeriodEnd:   unixPtr(w.CurrentPeriodEnd),
		UserID:             strings.TrimSpace(w.Metadata["user_id"]),
	}
	// newer API versions carry the period on the subscription item
	if len(w.Items.Data) > 0 {
		item := w.Items.Data[0]
		snap.PriceID = item.Price.ID
		if snap.CurrentPeriodStart == nil {
			snap.CurrentPeriodStart = unixPtr(item.CurrentPeriodStart)
		}
		if snap.CurrentPeriodEnd == nil {
			snap.CurrentPeriodEnd = unixPtr(item.CurrentPeriodEnd)
		}
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &SubscriptionChanged{Subscription: snap}, nil
}

func decodeInvoice(raw []byte) (*InvoiceOutcome, error) {
	var w wireInvoice
	if err := unmarshalObject(raw, "invoice", &w, func() string { return w.Object }); err != nil {
		return nil, err
	}
	if w.ID == "" || w.Currency == "" {
		return nil, fmt.Errorf("%w: invoice without id or currency", ErrInvalidPayload)
	}
	sub := string(w.Subscription)
	if sub == "" && w.Parent != nil && w.Parent.SubscriptionDetails != nil {
		sub = string(w.Parent.SubscriptionDetails.Subscription)
	}
	return &InvoiceOutcome{
		InvoiceID:       w.ID,
		SubscriptionID:  sub,
		CustomerID:      string(w.Customer),
		PaymentIntentID: string(w.PaymentIntent),
		Currency:        strings.ToLower(w.Currency),
		AmountPaid:      w.AmountPaid,
		AmountDue:       w.AmountDue,
	}, nil
}

func decodePaymentIntent(raw []byte) (*PaymentIntentOutcome, error) {
	var w wirePaymentIntent
	if err := unmarshalObject(raw, "payment_intent", &w, func() string { return w.Object }); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, fmt.Errorf("%w: payment intent without id", ErrInvalidPayload)
	}
	return &PaymentIntentOutcome{
		PaymentIntentID: w.ID,
		CustomerID:      string(w.Customer),
		Amount:          w.Amount,
		Currency:        strings.ToLower(w.Currency),
		Status:          w.Status,
	}, nil
}

// Validate checks the period bounds of the snapshot.
func (s *SubscriptionSnapshot) Validate() error {
	if s.CurrentPeriodStart != nil && s.CurrentPeriodEnd != nil && !s.CurrentPeriodEnd.After(*s.CurrentPeriodStart) {
		return fmt.Errorf("%w: subscription %s period end not after start", ErrInvalidPayload, s.ID)
	}
	return nil
}

func unixPtr(v *int64) *time.Time {
	if v == nil || *v <= 0 {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}
