package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TierPolicy decides how a resolved tier combines with the tier already on record
type TierPolicy string

const (
	// PolicyReplace sets the tier implied by the current payment's items alone.
	// A later purchase of a lower-ranked item downgrades the account.
	PolicyReplace TierPolicy = "replace"

	// PolicyMonotonic keeps the higher of the stored tier and the resolved tier.
	// Costs one extra read per reconciliation.
	PolicyMonotonic TierPolicy = "monotonic"
)

// ParseTierPolicy converts a configuration value to a TierPolicy.
// An empty value selects PolicyReplace.
func ParseTierPolicy(s string) (TierPolicy, error) {
	switch TierPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReplace:
		return PolicyReplace, nil
	case PolicyMonotonic:
		return PolicyMonotonic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTierPolicy, s)
	}
}

// UpdaterConfig configures an Updater
type UpdaterConfig struct {
	// Storage persists user documents (required)
	Storage Storage

	// Resolver maps items to tiers. Defaults to a resolver over DefaultCatalog.
	Resolver *Resolver

	// Policy defaults to PolicyReplace
	Policy TierPolicy

	// Logger is optional
	Logger Logger

	// Now overrides the clock in tests
	Now func() time.Time
}

// Updater applies resolved tiers to user documents
type Updater struct {
	storage  Storage
	resolver *Resolver
	policy   TierPolicy
	logger   Logger
	now      func() time.Time
}

// NewUpdater creates a subscription updater
func NewUpdater(config UpdaterConfig) (*Updater, error) {
	if config.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	policy, err := ParseTierPolicy(string(config.Policy))
	if err != nil {
		return nil, err
	}
	resolver := config.Resolver
	if resolver == nil {
		resolver = defaultResolver
	}
	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Updater{
		storage:  config.Storage,
		resolver: resolver,
		policy:   policy,
		logger:   logger,
		now:      now,
	}, nil
}

// Policy returns the configured tier policy
func (u *Updater) Policy() TierPolicy {
	return u.policy
}

// ApplySubscription resolves the tier implied by items and merges it into the
// user's document together with the purchased item names.
// Returns the tier that was written.
func (u *Updater) ApplySubscription(ctx context.Context, userID string, items []Item) (Tier, error) {
	if IsGuest(userID) {
		return TierFree, ErrGuestUser
	}

	resolved := u.resolver.Resolve(items)
	tier := resolved

	if u.policy == PolicyMonotonic {
		existing, err := u.storage.GetUser(ctx, userID)
		switch {
		case err == nil:
			tier = MaxTier(existing.SubscriptionType, resolved)
		case errors.Is(err, ErrUserNotFound):
			// merge write below creates the document
		default:
			return resolved, fmt.Errorf("failed to read current tier: %w", err)
		}
	}

	change := &SubscriptionChange{
		Tier:        tier,
		Purchases:   ItemNames(items),
		PurchasedAt: u.now().UTC(),
	}
	if err := u.storage.ApplySubscription(ctx, userID, change); err != nil {
		return tier, fmt.Errorf("failed to apply subscription: %w", err)
	}

	u.logger.Info("subscription updated",
		Field{Key: "user_id", Value: userID},
		Field{Key: "tier", Value: string(tier)},
		Field{Key: "resolved_tier", Value: string(resolved)},
		Field{Key: "policy", Value: string(u.policy)},
	)
	return tier, nil
}
