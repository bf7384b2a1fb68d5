// Package app wires configuration into the storefront's clients and services.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/Kirk-Client/Kirk-Site/internal/config"
	"github.com/Kirk-Client/Kirk-Site/pkg/accounts"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
	zerolog_adapter "github.com/Kirk-Client/Kirk-Site/pkg/storefront/logger/zerolog"
	fsstorage "github.com/Kirk-Client/Kirk-Site/storage/firestore"
)

// NewLogger builds the process logger: JSON on w, or console output when pretty
func NewLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Backend holds the Firebase clients and the stores built on them
type Backend struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	Storage   *fsstorage.Storage
	Directory *accounts.FirebaseDirectory
	Logger    storefront.Logger
}

// OpenBackend initializes the Firebase app and its Firestore and Auth clients
func OpenBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backend, error) {
	var opts []option.ClientOption
	if cfg.Firestore.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
	}
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firestore.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase: %w", err)
	}

	fsClient, err := fbApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		_ = fsClient.Close()
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	store, err := fsstorage.New(fsClient, fsstorage.Config{
		UsersCollection:          cfg.Collections.Users,
		OrdersCollection:         cfg.Collections.Orders,
		CryptoPaymentsCollection: cfg.Collections.CryptoPayments,
	})
	if err != nil {
		_ = fsClient.Close()
		return nil, err
	}
	directory, err := accounts.NewFirebaseDirectory(authClient)
	if err != nil {
		_ = fsClient.Close()
		return nil, err
	}

	return &Backend{
		Firestore: fsClient,
		Auth:      authClient,
		Storage:   store,
		Directory: directory,
		Logger:    zerolog_adapter.NewLogger(logger),
	}, nil
}

// Accounts builds the provisioning service over the backend
func (b *Backend) Accounts() (*accounts.Service, error) {
	return accounts.NewService(accounts.ServiceConfig{
		Storage:   b.Storage,
		Directory: b.Directory,
		Logger:    b.Logger,
	})
}

// Wiper builds the destructive wipe over the backend
func (b *Backend) Wiper() (*accounts.Wiper, error) {
	return accounts.NewWiper(accounts.WiperConfig{
		Directory: b.Directory,
		Purger:    b.Storage,
		Logger:    b.Logger,
	})
}

// Close releases the Firestore client
func (b *Backend) Close() error {
	if b == nil || b.Firestore == nil {
		return nil
	}
	return b.Firestore.Close()
}
