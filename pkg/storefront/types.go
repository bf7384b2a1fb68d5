package storefront

import (
	"strings"
	"time"
)

// GuestUserID is the sentinel user identifier for purchases without an account
const GuestUserID = "guest"

// IsGuest reports whether userID denotes no associated account
func IsGuest(userID string) bool {
	id := strings.TrimSpace(userID)
	return id == "" || id == GuestUserID
}

// UserIDOrGuest returns userID, or GuestUserID when it is empty
func UserIDOrGuest(userID string) string {
	if strings.TrimSpace(userID) == "" {
		return GuestUserID
	}
	return userID
}

// Item is a single purchased line item as sent by the storefront
type Item struct {
	Name     string  `json:"name" firestore:"name"`
	Price    float64 `json:"price,omitempty" firestore:"price,omitempty"`
	Quantity int     `json:"quantity,omitempty" firestore:"quantity,omitempty"`
}

// ItemNames returns the names of items in order
func ItemNames(items []Item) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

// AccountStatus values for User.AccountStatus
const (
	AccountStatusActive = "active"
)

// DefaultHWID is stored until the client binds a hardware id
const DefaultHWID = "N/A"

// User is the account document keyed by the auth provider's uid
type User struct {
	UID              string
	Username         string
	Email            string
	HWID             string
	AccountStatus    string
	SubscriptionType Tier
	Purchases        []string
	CreatedAt        time.Time
	LastLogin        time.Time
	LastPurchase     time.Time
}

// NewUser returns a freshly provisioned account on the free tier
func NewUser(uid, username, email string, now time.Time) *User {
	return &User{
		UID:              uid,
		Username:         username,
		Email:            email,
		HWID:             DefaultHWID,
		AccountStatus:    AccountStatusActive,
		SubscriptionType: TierFree,
		Purchases:        []string{},
		CreatedAt:        now,
		LastLogin:        now,
	}
}

// SubscriptionChange is the merge applied to a user document by a reconciliation
type SubscriptionChange struct {
	Tier        Tier
	Purchases   []string // unioned into User.Purchases
	PurchasedAt time.Time
}

// PaymentMethod identifies how an order was paid
type PaymentMethod string

const (
	PaymentMethodStripeCard     PaymentMethod = "stripe_card"
	PaymentMethodCryptoCoinbase PaymentMethod = "crypto_coinbase"
)

// OrderStatusCompleted is the only status an order is written with
const OrderStatusCompleted = "completed"

// UnknownCryptocurrency is recorded when a crypto order does not report its coin
const UnknownCryptocurrency = "unknown"

// Order is an immutable record of a confirmed payment
type Order struct {
	ID             string
	Provider       string
	PaymentMethod  PaymentMethod
	ExternalID     string // payment intent id or charge id
	ChargeCode     string
	UserID         string
	Amount         float64 // major currency units
	Currency       string
	Items          []Item
	Status         string
	Cryptocurrency string
	CreatedAt      time.Time
}

// Crypto payment statuses
const (
	CryptoPaymentPending   = "pending"
	CryptoPaymentCompleted = "completed"
)

// CryptoPayment tracks a crypto charge between initiation and provider confirmation
type CryptoPayment struct {
	ID          string
	ChargeID    string
	UserID      string
	Email       string
	Items       []Item
	Amount      float64
	Status      string
	CreatedAt   time.Time
	CompletedAt *time.Time
}
