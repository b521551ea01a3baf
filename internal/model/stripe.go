package model

import (
	"encoding/json"
	"fmt"
)

// Stripe event types handled by the webhook receiver.
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired        = "checkout.session.expired"
	EventChargeRefunded         = "charge.refunded"
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// StripeEvent is the webhook envelope. Data.Object is kept raw and decoded
// into the variant matching the event type, so a malformed payload fails at
// the boundary instead of surfacing as zero values downstream.
type StripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    StripeEventData `json:"data"`
}

type StripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CheckoutSession is the session object carried by checkout.session.* events.
type CheckoutSession struct {
	ID              string            `json:"id"`
	PaymentIntent   string            `json:"payment_intent"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	PaymentStatus   string            `json:"payment_status"`
	Status          string            `json:"status"`
	CustomerDetails *CustomerDetails  `json:"customer_details"`
	Metadata        map[string]string `json:"metadata"`
}

type Charge struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Amount        int64  `json:"amount"`
	Refunded      bool   `json:"refunded"`
}

type PaymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (e *StripeEvent) CheckoutSession() (*CheckoutSession, error) {
	var s CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session from %s: %w", e.Type, err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("checkout session in %s has no id", e.Type)
	}
	return &s, nil
}

func (e *StripeEvent) Charge() (*Charge, error) {
	var c Charge
	if err := json.Unmarshal(e.Data.Object, &c); err != nil {
		return nil, fmt.Errorf("decode charge from %s: %w", e.Type, err)
	}
	if c.PaymentIntent == "" {
		return nil, fmt.Errorf("charge in %s has no payment_intent", e.Type)
	}
	return &c, nil
}

func (e *StripeEvent) PaymentIntent() (*PaymentIntent, error) {
	var pi PaymentIntent
	if err := json.Unmarshal(e.Data.Object, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent from %s: %w", e.Type, err)
	}
	if pi.ID == "" {
		return nil, fmt.Errorf("payment intent in %s has no id", e.Type)
	}
	return &pi, nil
}

// Session metadata keys written at checkout-session creation and read back by
// the order materializer.
const (
	MetadataKeyItems    = "items"
	MetadataKeyUserID   = "userId"
	MetadataKeySubtotal = "subtotal"
	MetadataKeyTax      = "tax"
	MetadataKeyTotal    = "total"
)

// CheckoutItem is one cart line as serialized into session metadata.
type CheckoutItem struct {
	TrackID       string `json:"trackId"`
	TrackPriceID  string `json:"trackPriceId,omitempty"`
	LicenseType   string `json:"licenseType"`
	Quantity      int32  `json:"quantity"`
	UnitPrice     int64  `json:"unitPrice"`
	StripePriceID string `json:"stripePriceId,omitempty"`
}
