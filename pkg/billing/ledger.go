package billing

import "context"

// EventLedger remembers which deliveries have been processed so redelivered
// webhooks are acknowledged without repeating side effects.
type EventLedger interface {
	// Claim returns true when (provider, eventID) has not been claimed before.
	Claim(ctx context.Context, provider, eventID string) (bool, error)

	// Release forgets a claim after processing failed.
	Release(ctx context.Context, provider, eventID string) error
}
