package accounts

import "context"

// AuthUser is an account as known to the authentication provider
type AuthUser struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Directory lists and deletes accounts in the authentication provider
type Directory interface {
	// ListUsers returns one page of users and the token of the next page ("" on the last page)
	ListUsers(ctx context.Context, pageSize int, pageToken string) ([]AuthUser, string, error)

	// DeleteUsers deletes the given accounts and returns how many were deleted
	DeleteUsers(ctx context.Context, uids []string) (int, error)
}
