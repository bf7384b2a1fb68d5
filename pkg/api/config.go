package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Kirk-Client/Kirk-Site/pkg/accounts"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing/coinbase"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing/stripe"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

// PaymentIntentCreator creates card payment intents
type PaymentIntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req stripe.PaymentIntentRequest) (*stripe.PaymentIntent, error)
}

// ChargeCreator creates hosted crypto charges
type ChargeCreator interface {
	CreateCharge(ctx context.Context, req coinbase.ChargeRequest) (*coinbase.Charge, error)
}

// CryptoPaymentRecorder stores the pending record for a created charge
type CryptoPaymentRecorder interface {
	AddCryptoPayment(ctx context.Context, payment *storefront.CryptoPayment) (string, error)
}

// AccountService provisions and reconciles user documents
type AccountService interface {
	OnUserCreate(ctx context.Context, u accounts.AuthUser) (bool, error)
	OnUserDelete(ctx context.Context, uid string) error
	ReconcileUsers(ctx context.Context) (*accounts.ReconcileReport, error)
}

// Config holds configuration for the storefront HTTP API
type Config struct {
	// PaymentIntents serves POST /payments/stripe/intent. Route is omitted when nil.
	PaymentIntents PaymentIntentCreator

	// Charges and CryptoPayments serve POST /payments/crypto/charge.
	// Route is omitted unless both are set.
	Charges        ChargeCreator
	CryptoPayments CryptoPaymentRecorder

	// StripeWebhook and CoinbaseWebhook receive provider notifications
	StripeWebhook   http.Handler
	CoinbaseWebhook http.Handler

	// Accounts serves the auth event and reconciliation routes.
	// Routes are omitted when nil or when AdminToken is empty.
	Accounts AccountService

	// AdminToken is the bearer token the admin and auth event routes require
	AdminToken string

	// MetricsHandler is mounted at GET /metrics when set
	MetricsHandler http.Handler

	// Middlewares are applied after request id and panic recovery
	Middlewares []func(http.Handler) http.Handler

	// MaxBodyBytes caps JSON request bodies (default 64KB)
	MaxBodyBytes int64

	// Logger is optional (default noop)
	Logger storefront.Logger

	// OnError handles errors. If nil, writes {"error": message}.
	OnError func(http.ResponseWriter, *http.Request, error, int)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if (c.Charges == nil) != (c.CryptoPayments == nil) {
		return fmt.Errorf("charges and cryptoPayments must be set together")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("maxBodyBytes must not be negative")
	}
	return nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
