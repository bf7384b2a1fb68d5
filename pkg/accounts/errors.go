package accounts

import "errors"

var (
	// ErrDirectoryRequired is returned when an operation needs the auth directory but none is configured
	ErrDirectoryRequired = errors.New("auth directory not configured")

	// ErrPartialDelete is returned when the auth provider refused some deletions
	ErrPartialDelete = errors.New("some users could not be deleted")
)
