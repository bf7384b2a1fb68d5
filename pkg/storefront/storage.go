package storefront

import (
	"context"
	"time"
)

// Storage defines the document store operations the storefront relies on.
// Implementations must merge subscription changes into the existing user document
// rather than replacing it.
type Storage interface {
	// GetUser retrieves a user document.
	// Returns ErrUserNotFound if the document does not exist.
	GetUser(ctx context.Context, uid string) (*User, error)

	// CreateUser creates a user document.
	// Returns ErrUserExists if a document with the same uid already exists.
	CreateUser(ctx context.Context, user *User) error

	// DeleteUser removes a user document. Deleting a missing document is not an error.
	DeleteUser(ctx context.Context, uid string) error

	// ApplySubscription merges a subscription change into the user document:
	// sets the tier and lastPurchase, unions purchases, preserves every other field.
	// Creates the document if it does not exist.
	ApplySubscription(ctx context.Context, uid string, change *SubscriptionChange) error

	// AddOrder appends an order record and returns its generated id
	AddOrder(ctx context.Context, order *Order) (string, error)

	// AddCryptoPayment records a pending crypto charge and returns its generated id
	AddCryptoPayment(ctx context.Context, payment *CryptoPayment) (string, error)

	// CompleteCryptoPayments marks every crypto payment with chargeID as completed.
	// Returns the number of records updated (zero is not an error).
	CompleteCryptoPayments(ctx context.Context, chargeID string, completedAt time.Time) (int, error)
}
