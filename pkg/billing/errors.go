package billing

import "errors"

var (
	// ErrProviderNotConfigured is returned when a provider is missing its secret or API key
	ErrProviderNotConfigured = errors.New("billing provider not configured")

	// ErrInvalidWebhookSignature is returned when webhook signature validation fails
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// ErrInvalidWebhookPayload is returned when a verified payload cannot be parsed
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")

	// ErrProviderAPIError is returned when the provider's API returns an error
	ErrProviderAPIError = errors.New("billing provider API error")

	// ErrUnknownEventKind is returned when a normalized event carries no known kind
	ErrUnknownEventKind = errors.New("unknown event kind")
)
