package accounts

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
)

// MaxDeleteBatch is the most uids Firebase Auth accepts per DeleteUsers call
const MaxDeleteBatch = 1000

// FirebaseDirectory implements Directory with the Firebase Auth admin API
type FirebaseDirectory struct {
	client *auth.Client
}

// NewFirebaseDirectory wraps a Firebase Auth client
func NewFirebaseDirectory(client *auth.Client) (*FirebaseDirectory, error) {
	if client == nil {
		return nil, fmt.Errorf("firebase auth client is required")
	}
	return &FirebaseDirectory{client: client}, nil
}

// ListUsers implements Directory
func (d *FirebaseDirectory) ListUsers(ctx context.Context, pageSize int, pageToken string) ([]AuthUser, string, error) {
	pager := iterator.NewPager(d.client.Users(ctx, ""), pageSize, pageToken)

	var records []*auth.ExportedUserRecord
	next, err := pager.NextPage(&records)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list auth users: %w", err)
	}

	users := make([]AuthUser, 0, len(records))
	for _, r := range records {
		if r == nil || r.UserRecord == nil || r.UserInfo == nil {
			continue
		}
		users = append(users, AuthUser{
			UID:         r.UID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
		})
	}
	return users, next, nil
}

// DeleteUsers implements Directory
func (d *FirebaseDirectory) DeleteUsers(ctx context.Context, uids []string) (int, error) {
	deleted := 0
	for start := 0; start < len(uids); start += MaxDeleteBatch {
		end := start + MaxDeleteBatch
		if end > len(uids) {
			end = len(uids)
		}

		result, err := d.client.DeleteUsers(ctx, uids[start:end])
		if err != nil {
			return deleted, fmt.Errorf("failed to delete auth users: %w", err)
		}
		deleted += result.SuccessCount
		if result.FailureCount > 0 {
			reason := ""
			if len(result.Errors) > 0 && result.Errors[0] != nil {
				reason = result.Errors[0].Reason
			}
			return deleted, fmt.Errorf("%w: %d failed (first: %s)", ErrPartialDelete, result.FailureCount, reason)
		}
	}
	return deleted, nil
}
