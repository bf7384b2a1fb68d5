// Package redis provides a Redis-backed webhook delivery ledger.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger implements billing.EventLedger with SET NX keys
type Ledger struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis ledger configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "kirk:webhook:")
	KeyPrefix string

	// TTL bounds how long a delivery is remembered (default: 72h).
	// Providers stop redelivering well within this window.
	TTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "kirk:webhook:",
		TTL:       72 * time.Hour,
	}
}

// New creates a new Redis ledger.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Ledger, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	defaults := DefaultConfig()
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}

	return &Ledger{client: client, config: config}, nil
}

// Claim records (provider, eventID) and returns true if it was not already recorded
func (l *Ledger) Claim(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(provider, eventID), time.Now().UTC().Unix(), l.config.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", err)
	}
	return ok, nil
}

// Release removes the claim so the event can be processed again
func (l *Ledger) Release(ctx context.Context, provider, eventID string) error {
	if err := l.client.Del(ctx, l.key(provider, eventID)).Err(); err != nil {
		return fmt.Errorf("failed to release event: %w", err)
	}
	return nil
}

// Ping checks connectivity
func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Ledger) key(provider, eventID string) string {
	return l.config.KeyPrefix + provider + ":" + eventID
}
