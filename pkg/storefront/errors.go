package storefront

import "errors"

var (
	// ErrUserNotFound is returned when a user document does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when creating a user document that already exists
	ErrUserExists = errors.New("user already exists")

	// ErrGuestUser is returned when a subscription update targets the guest sentinel
	ErrGuestUser = errors.New("guest purchases carry no subscription")

	// ErrInvalidAmount is returned for zero or negative payment amounts
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidUser is returned for malformed user records
	ErrInvalidUser = errors.New("invalid user")

	// ErrInvalidTierPolicy is returned for unknown tier policies
	ErrInvalidTierPolicy = errors.New("invalid tier policy")
)
