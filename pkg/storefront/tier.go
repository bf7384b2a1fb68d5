package storefront

import "strings"

// Tier is a subscription entitlement level. Tiers are totally ordered by Priority.
type Tier string

const (
	// TierFree is the default tier every account starts on
	TierFree Tier = "free"
	// TierMedia unlocks the media build
	TierMedia Tier = "media"
	// TierLite unlocks the lite client
	TierLite Tier = "lite"
	// TierLifetime unlocks the full client permanently
	TierLifetime Tier = "lifetime"
)

var tierPriority = map[Tier]int{
	TierFree:     0,
	TierMedia:    1,
	TierLite:     2,
	TierLifetime: 3,
}

// Priority returns the tier's rank. Unknown tiers rank with TierFree.
func (t Tier) Priority() int {
	return tierPriority[t]
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := tierPriority[t]
	return ok
}

// Outranks reports whether t has strictly higher priority than other.
func (t Tier) Outranks(other Tier) bool {
	return t.Priority() > other.Priority()
}

// MaxTier returns the higher-priority tier of a and b.
func MaxTier(a, b Tier) Tier {
	if b.Outranks(a) {
		return b
	}
	return a
}

// ParseTier converts a stored string to a Tier, falling back to TierFree.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return TierFree
	}
	return t
}

// DefaultCatalog maps storefront product display names to the tier they grant.
var DefaultCatalog = map[string]Tier{
	"Media Version": TierMedia,
	"KirkLite":      TierLite,
	"Kirk Client":   TierLifetime,
	"Merch":         TierFree,
}

// Resolver maps purchased items to the single tier they imply
type Resolver struct {
	catalog map[string]Tier // exact product name -> tier
}

// NewResolver creates a resolver for the given catalog.
// Product names are matched exactly; any other spelling resolves to TierFree.
// A nil or empty catalog falls back to DefaultCatalog.
func NewResolver(catalog map[string]Tier) *Resolver {
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	copied := make(map[string]Tier, len(catalog))
	for name, tier := range catalog {
		if !tier.Valid() {
			tier = TierFree
		}
		copied[name] = tier
	}
	return &Resolver{catalog: copied}
}

// TierFor returns the tier granted by a single product name
func (r *Resolver) TierFor(name string) Tier {
	if tier, ok := r.catalog[name]; ok {
		return tier
	}
	return TierFree
}

// Resolve returns the highest-priority tier implied by items.
// Unrecognized names count as TierFree; an empty slice resolves to TierFree.
func (r *Resolver) Resolve(items []Item) Tier {
	highest := TierFree
	for _, item := range items {
		highest = MaxTier(highest, r.TierFor(item.Name))
	}
	return highest
}

var defaultResolver = NewResolver(DefaultCatalog)

// ResolveTier resolves items against DefaultCatalog
func ResolveTier(items []Item) Tier {
	return defaultResolver.Resolve(items)
}
