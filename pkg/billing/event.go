package billing

import "github.com/Kirk-Client/Kirk-Site/pkg/storefront"

// Provider names
const (
	ProviderStripe   = "stripe"
	ProviderCoinbase = "coinbase"
)

// EventKind classifies a webhook delivery after normalization
type EventKind string

const (
	// EventPaymentSucceeded triggers reconciliation
	EventPaymentSucceeded EventKind = "payment_succeeded"
	// EventPaymentFailed is logged only
	EventPaymentFailed EventKind = "payment_failed"
	// EventIgnored covers every other event type
	EventIgnored EventKind = "ignored"
)

// NormalizedEvent is a provider-independent view of a verified webhook delivery
type NormalizedEvent struct {
	Provider  string
	Kind      EventKind
	EventID   string
	EventType string

	// UserID is the account the payment belongs to, GuestUserID when absent
	UserID string
	Email  string
	Items  []storefront.Item

	// ExternalID is the payment intent id or charge id
	ExternalID string

	// Amount in major currency units
	Amount   float64
	Currency string

	// Details holds provider-specific fields. Nil for ignored events.
	Details Details
}

// Details is implemented by CardDetails and CryptoDetails only
type Details interface {
	PaymentMethod() storefront.PaymentMethod
	isDetails()
}

// CardDetails are the card-provider specific fields of an event
type CardDetails struct {
	PaymentIntentID string
	CustomerID      string
}

// PaymentMethod implements Details
func (*CardDetails) PaymentMethod() storefront.PaymentMethod { return storefront.PaymentMethodStripeCard }
func (*CardDetails) isDetails()                              {}

// CryptoDetails are the crypto-provider specific fields of an event
type CryptoDetails struct {
	ChargeCode     string
	Cryptocurrency string
}

// PaymentMethod implements Details
func (*CryptoDetails) PaymentMethod() storefront.PaymentMethod {
	return storefront.PaymentMethodCryptoCoinbase
}
func (*CryptoDetails) isDetails() {}
