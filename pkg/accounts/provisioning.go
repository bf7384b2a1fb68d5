// Package accounts keeps user documents in step with the authentication provider.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

// DefaultPageSize is the auth directory page size used by reconciliation and the wipe
const DefaultPageSize = 1000

// Account provisioning result statuses
const (
	StatusCreated       = "created"
	StatusAlreadyExists = "already_exists"
)

// AccountResult describes what happened to one account during reconciliation
type AccountResult struct {
	Status   string `json:"status"`
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// ReconcileReport summarizes a reconciliation run
type ReconcileReport struct {
	TotalUsers     int             `json:"totalUsers"`
	Created        int             `json:"created"`
	AlreadyExisted int             `json:"alreadyExisted"`
	Results        []AccountResult `json:"results"`
}

func (r *ReconcileReport) add(result AccountResult) {
	r.TotalUsers++
	switch result.Status {
	case StatusCreated:
		r.Created++
	case StatusAlreadyExists:
		r.AlreadyExisted++
	}
	r.Results = append(r.Results, result)
}

// ServiceConfig configures a Service
type ServiceConfig struct {
	// Storage holds user documents (required)
	Storage storefront.Storage

	// Directory is needed by ReconcileUsers only
	Directory Directory

	Logger storefront.Logger

	// PageSize for directory listing. Defaults to DefaultPageSize.
	PageSize int

	// Now overrides the clock in tests
	Now func() time.Time
}

// Service provisions and removes user documents
type Service struct {
	storage   storefront.Storage
	directory Directory
	logger    storefront.Logger
	pageSize  int
	now       func() time.Time
}

// NewService creates an account provisioning service
func NewService(config ServiceConfig) (*Service, error) {
	if config.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = &storefront.NoopLogger{}
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		storage:   config.Storage,
		directory: config.Directory,
		logger:    logger,
		pageSize:  pageSize,
		now:       now,
	}, nil
}

// Username derives the display username: displayName, else the email's local part, else the uid
func Username(u AuthUser) string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(u.Email, "@"); local != "" {
		return local
	}
	return u.UID
}

// OnUserCreate creates the user document for a new account.
// An existing document is left untouched and reported as not created.
func (s *Service) OnUserCreate(ctx context.Context, u AuthUser) (bool, error) {
	if strings.TrimSpace(u.UID) == "" {
		return false, storefront.ErrInvalidUser
	}

	user := storefront.NewUser(u.UID, Username(u), u.Email, s.now().UTC())
	err := s.storage.CreateUser(ctx, user)
	switch {
	case err == nil:
		s.logger.Info("user document created",
			storefront.Field{Key: "uid", Value: u.UID},
			storefront.Field{Key: "username", Value: user.Username})
		return true, nil
	case errors.Is(err, storefront.ErrUserExists):
		s.logger.Warn("user document already exists", storefront.Field{Key: "uid", Value: u.UID})
		return false, nil
	default:
		return false, fmt.Errorf("failed to create user document: %w", err)
	}
}

// OnUserDelete removes the user document of a deleted account
func (s *Service) OnUserDelete(ctx context.Context, uid string) error {
	if strings.TrimSpace(uid) == "" {
		return storefront.ErrInvalidUser
	}
	if err := s.storage.DeleteUser(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete user document: %w", err)
	}
	s.logger.Info("user document deleted", storefront.Field{Key: "uid", Value: uid})
	return nil
}

// EnsureAccounts creates documents for the given accounts where missing
func (s *Service) EnsureAccounts(ctx context.Context, users []AuthUser) (*ReconcileReport, error) {
	report := &ReconcileReport{Results: []AccountResult{}}
	for _, u := range users {
		if err := s.ensure(ctx, u, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// ReconcileUsers walks every account in the directory and creates missing documents
func (s *Service) ReconcileUsers(ctx context.Context) (*ReconcileReport, error) {
	if s.directory == nil {
		return nil, ErrDirectoryRequired
	}

	report := &ReconcileReport{Results: []AccountResult{}}
	pageToken := ""
	for {
		users, next, err := s.directory.ListUsers(ctx, s.pageSize, pageToken)
		if err != nil {
			return report, err
		}
		for _, u := range users {
			if err := s.ensure(ctx, u, report); err != nil {
				return report, err
			}
		}
		if next == "" {
			break
		}
		pageToken = next
	}

	s.logger.Info("user reconciliation complete",
		storefront.Field{Key: "total", Value: report.TotalUsers},
		storefront.Field{Key: "created", Value: report.Created})
	return report, nil
}

func (s *Service) ensure(ctx context.Context, u AuthUser, report *ReconcileReport) error {
	created, err := s.OnUserCreate(ctx, u)
	if err != nil {
		return fmt.Errorf("uid %s: %w", u.UID, err)
	}
	result := AccountResult{Status: StatusAlreadyExists, UID: u.UID, Email: u.Email}
	if created {
		result.Status = StatusCreated
		result.Username = Username(u)
	}
	report.add(result)
	return nil
}
