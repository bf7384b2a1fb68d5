package billing

import "net/http"

// Normalizer verifies a provider's webhook deliveries and converts them into
// NormalizedEvents. Each payment provider implements it, so the Dispatcher
// reconciles card and crypto payments with the same logic.
type Normalizer interface {
	// Name returns the provider name (e.g., "stripe", "coinbase")
	Name() string

	// WebhookConfigured reports whether a webhook secret is available.
	WebhookConfigured() bool

	// Normalize verifies the signature over the raw payload and parses it.
	// Returns ErrInvalidWebhookSignature or ErrInvalidWebhookPayload (wrapped).
	Normalize(payload []byte, header http.Header) (*NormalizedEvent, error)
}
