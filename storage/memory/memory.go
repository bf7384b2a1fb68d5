// Package memory provides an in-memory implementation of the storefront.Storage interface.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

// Collection names reported by CollectionIDs
const (
	CollectionUsers          = "users"
	CollectionOrders         = "orders"
	CollectionCryptoPayments = "crypto_payments"
)

// Storage implements storefront.Storage using in-memory maps
type Storage struct {
	mu             sync.RWMutex
	users          map[string]*storefront.User
	orders         map[string]*storefront.Order
	cryptoPayments map[string]*storefront.CryptoPayment
	nextID         int
	userWrites     int
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		users:          make(map[string]*storefront.User),
		orders:         make(map[string]*storefront.Order),
		cryptoPayments: make(map[string]*storefront.CryptoPayment),
	}
}

// GetUser implements storefront.Storage
func (s *Storage) GetUser(_ context.Context, uid string) (*storefront.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[uid]
	if !ok {
		return nil, storefront.ErrUserNotFound
	}
	return copyUser(user), nil
}

// CreateUser implements storefront.Storage
func (s *Storage) CreateUser(_ context.Context, user *storefront.User) error {
	if user == nil || user.UID == "" {
		return storefront.ErrInvalidUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.UID]; exists {
		return storefront.ErrUserExists
	}
	s.users[user.UID] = copyUser(user)
	s.userWrites++
	return nil
}

// DeleteUser implements storefront.Storage
func (s *Storage) DeleteUser(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, uid)
	return nil
}

// ApplySubscription implements storefront.Storage with merge semantics
func (s *Storage) ApplySubscription(_ context.Context, uid string, change *storefront.SubscriptionChange) error {
	if uid == "" || change == nil {
		return fmt.Errorf("invalid subscription change")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[uid]
	if !ok {
		// Merge onto a missing document creates it with only the merged fields
		user = &storefront.User{UID: uid}
		s.users[uid] = user
	}

	user.SubscriptionType = change.Tier
	user.LastPurchase = change.PurchasedAt
	user.Purchases = union(user.Purchases, change.Purchases)
	s.userWrites++
	return nil
}

// AddOrder implements storefront.Storage
func (s *Storage) AddOrder(_ context.Context, order *storefront.Order) (string, error) {
	if order == nil {
		return "", fmt.Errorf("order is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID("order")
	orderCopy := *order
	orderCopy.ID = id
	orderCopy.Items = append([]storefront.Item(nil), order.Items...)
	if orderCopy.CreatedAt.IsZero() {
		orderCopy.CreatedAt = time.Now().UTC()
	}
	s.orders[id] = &orderCopy
	return id, nil
}

// AddCryptoPayment implements storefront.Storage
func (s *Storage) AddCryptoPayment(_ context.Context, payment *storefront.CryptoPayment) (string, error) {
	if payment == nil || payment.ChargeID == "" {
		return "", fmt.Errorf("crypto payment with charge id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID("crypto")
	paymentCopy := *payment
	paymentCopy.ID = id
	paymentCopy.Items = append([]storefront.Item(nil), payment.Items...)
	if paymentCopy.Status == "" {
		paymentCopy.Status = storefront.CryptoPaymentPending
	}
	if paymentCopy.CreatedAt.IsZero() {
		paymentCopy.CreatedAt = time.Now().UTC()
	}
	s.cryptoPayments[id] = &paymentCopy
	return id, nil
}

// CompleteCryptoPayments implements storefront.Storage
func (s *Storage) CompleteCryptoPayments(_ context.Context, chargeID string, completedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, payment := range s.cryptoPayments {
		if payment.ChargeID != chargeID {
			continue
		}
		at := completedAt
		payment.Status = storefront.CryptoPaymentCompleted
		payment.CompletedAt = &at
		updated++
	}
	return updated, nil
}

// Orders returns a snapshot of all orders sorted by id
func (s *Storage) Orders() []storefront.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]storefront.Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, *order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

// CryptoPayments returns a snapshot of all crypto payment records sorted by id
func (s *Storage) CryptoPayments() []storefront.CryptoPayment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]storefront.CryptoPayment, 0, len(s.cryptoPayments))
	for _, payment := range s.cryptoPayments {
		payments = append(payments, *payment)
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	return payments
}

// UserWrites returns how many user document writes have been performed
func (s *Storage) UserWrites() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userWrites
}

// CollectionIDs lists the non-empty collections, mirroring a document store listing
func (s *Storage) CollectionIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	if len(s.cryptoPayments) > 0 {
		ids = append(ids, CollectionCryptoPayments)
	}
	if len(s.orders) > 0 {
		ids = append(ids, CollectionOrders)
	}
	if len(s.users) > 0 {
		ids = append(ids, CollectionUsers)
	}
	return ids, nil
}

// DeleteBatch removes up to limit documents from collection and returns how many were removed
func (s *Storage) DeleteBatch(_ context.Context, collection string, limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("batch limit must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch collection {
	case CollectionUsers:
		return deleteUpTo(s.users, limit), nil
	case CollectionOrders:
		return deleteUpTo(s.orders, limit), nil
	case CollectionCryptoPayments:
		return deleteUpTo(s.cryptoPayments, limit), nil
	default:
		return 0, nil
	}
}

func deleteUpTo[V any](m map[string]V, limit int) int {
	deleted := 0
	for key := range m {
		if deleted >= limit {
			break
		}
		delete(m, key)
		deleted++
	}
	return deleted
}

func (s *Storage) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s_%06d", prefix, s.nextID)
}

func union(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, name := range existing {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range added {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func copyUser(u *storefront.User) *storefront.User {
	userCopy := *u
	userCopy.Purchases = append([]string(nil), u.Purchases...)
	return &userCopy
}
