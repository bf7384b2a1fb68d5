// Package firestore provides a Firestore implementation of the storefront.Storage interface.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

// maxConcurrentUpdates bounds the fan-out when completing pending payments
const maxConcurrentUpdates = 16

// Storage implements storefront.Storage using Google Cloud Firestore
type Storage struct {
	client                   *firestore.Client
	usersCollection          string
	ordersCollection         string
	cryptoPaymentsCollection string
}

// Config holds Firestore storage configuration
type Config struct {
	// UsersCollection holds one document per account, keyed by uid
	// Default: "users"
	UsersCollection string

	// OrdersCollection holds one document per confirmed payment
	// Default: "orders"
	OrdersCollection string

	// CryptoPaymentsCollection holds pending crypto charges
	// Default: "crypto_payments"
	CryptoPaymentsCollection string
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.UsersCollection == "" {
		config.UsersCollection = "users"
	}
	if config.OrdersCollection == "" {
		config.OrdersCollection = "orders"
	}
	if config.CryptoPaymentsCollection == "" {
		config.CryptoPaymentsCollection = "crypto_payments"
	}

	return &Storage{
		client:                   client,
		usersCollection:          config.UsersCollection,
		ordersCollection:         config.OrdersCollection,
		cryptoPaymentsCollection: config.CryptoPaymentsCollection,
	}, nil
}

// GetUser implements storefront.Storage
func (s *Storage) GetUser(ctx context.Context, uid string) (*storefront.User, error) {
	snap, err := s.client.Collection(s.usersCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, storefront.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !snap.Exists() {
		return nil, storefront.ErrUserNotFound
	}

	data := snap.Data()
	return &storefront.User{
		UID:              uid,
		Username:         getString(data, "username"),
		Email:            getString(data, "email"),
		HWID:             getString(data, "hwid"),
		AccountStatus:    getString(data, "accountStatus"),
		SubscriptionType: storefront.ParseTier(getString(data, "subscriptionType")),
		Purchases:        getStrings(data, "purchases"),
		CreatedAt:        getTime(data, "createdAt"),
		LastLogin:        getTime(data, "lastLogin"),
		LastPurchase:     getTime(data, "lastPurchase"),
	}, nil
}

// CreateUser implements storefront.Storage. Fails with ErrUserExists instead of overwriting.
func (s *Storage) CreateUser(ctx context.Context, user *storefront.User) error {
	if user == nil || user.UID == "" {
		return storefront.ErrInvalidUser
	}

	purchases := user.Purchases
	if purchases == nil {
		purchases = []string{}
	}
	data := map[string]interface{}{
		"uid":              user.UID,
		"username":         user.Username,
		"email":            user.Email,
		"hwid":             user.HWID,
		"accountStatus":    user.AccountStatus,
		"subscriptionType": string(user.SubscriptionType),
		"purchases":        purchases,
		"createdAt":        firestore.ServerTimestamp,
		"lastLogin":        firestore.ServerTimestamp,
	}

	_, err := s.client.Collection(s.usersCollection).Doc(user.UID).Create(ctx, data)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return storefront.ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// DeleteUser implements storefront.Storage
func (s *Storage) DeleteUser(ctx context.Context, uid string) error {
	if _, err := s.client.Collection(s.usersCollection).Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// ApplySubscription implements storefront.Storage as a single merging write.
// purchases is array-unioned so concurrent reconciliations never drop items.
func (s *Storage) ApplySubscription(ctx context.Context, uid string, change *storefront.SubscriptionChange) error {
	if uid == "" || change == nil {
		return fmt.Errorf("invalid subscription change")
	}

	data := map[string]interface{}{
		"subscriptionType": string(change.Tier),
		"lastPurchase":     firestore.ServerTimestamp,
	}
	if len(change.Purchases) > 0 {
		names := make([]interface{}, len(change.Purchases))
		for i, name := range change.Purchases {
			names[i] = name
		}
		data["purchases"] = firestore.ArrayUnion(names...)
	}

	if _, err := s.client.Collection(s.usersCollection).Doc(uid).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to apply subscription: %w", err)
	}
	return nil
}

// AddOrder implements storefront.Storage
func (s *Storage) AddOrder(ctx context.Context, order *storefront.Order) (string, error) {
	if order == nil {
		return "", fmt.Errorf("order is required")
	}

	data := map[string]interface{}{
		"provider":      order.Provider,
		"paymentMethod": string(order.PaymentMethod),
		"externalId":    order.ExternalID,
		"userId":        storefront.UserIDOrGuest(order.UserID),
		"amount":        order.Amount,
		"currency":      order.Currency,
		"items":         itemsData(order.Items),
		"status":        order.Status,
		"createdAt":     firestore.ServerTimestamp,
	}
	switch order.PaymentMethod {
	case storefront.PaymentMethodStripeCard:
		data["paymentIntentId"] = order.ExternalID
	case storefront.PaymentMethodCryptoCoinbase:
		data["chargeId"] = order.ExternalID
		data["chargeCode"] = order.ChargeCode
		data["cryptocurrency"] = order.Cryptocurrency
	}

	ref, _, err := s.client.Collection(s.ordersCollection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to add order: %w", err)
	}
	return ref.ID, nil
}

// AddCryptoPayment implements storefront.Storage
func (s *Storage) AddCryptoPayment(ctx context.Context, payment *storefront.CryptoPayment) (string, error) {
	if payment == nil || payment.ChargeID == "" {
		return "", fmt.Errorf("crypto payment with charge id is required")
	}

	paymentStatus := payment.Status
	if paymentStatus == "" {
		paymentStatus = storefront.CryptoPaymentPending
	}
	ref, _, err := s.client.Collection(s.cryptoPaymentsCollection).Add(ctx, map[string]interface{}{
		"chargeId":  payment.ChargeID,
		"userId":    storefront.UserIDOrGuest(payment.UserID),
		"email":     payment.Email,
		"items":     itemsData(payment.Items),
		"amount":    payment.Amount,
		"status":    paymentStatus,
		"createdAt": firestore.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to add crypto payment: %w", err)
	}
	return ref.ID, nil
}

// CompleteCryptoPayments implements storefront.Storage.
// completedAt is recorded as the server commit time.
func (s *Storage) CompleteCryptoPayments(ctx context.Context, chargeID string, _ time.Time) (int, error) {
	docs, err := s.client.Collection(s.cryptoPaymentsCollection).
		Where("chargeId", "==", chargeID).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to query crypto payments: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUpdates)
	for _, doc := range docs {
		ref := doc.Ref
		g.Go(func() error {
			_, err := ref.Update(gctx, []firestore.Update{
				{Path: "status", Value: storefront.CryptoPaymentCompleted},
				{Path: "completedAt", Value: firestore.ServerTimestamp},
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("failed to complete crypto payments: %w", err)
	}
	return len(docs), nil
}

// CollectionIDs lists the top-level collections in the database
func (s *Storage) CollectionIDs(ctx context.Context) ([]string, error) {
	refs, err := s.client.Collections(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// DeleteBatch deletes up to limit documents of collection in one BulkWriter
// run and returns how many were deleted.
func (s *Storage) DeleteBatch(ctx context.Context, collection string, limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("batch limit must be positive")
	}

	docs, err := s.client.Collection(collection).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", collection, err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("failed to enqueue delete: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return deleted, fmt.Errorf("failed to delete from %s: %w", collection, err)
		}
		deleted++
	}
	return deleted, nil
}

func itemsData(items []storefront.Item) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		entry := map[string]interface{}{"name": item.Name}
		if item.Price != 0 {
			entry["price"] = item.Price
		}
		if item.Quantity != 0 {
			entry["quantity"] = item.Quantity
		}
		out = append(out, entry)
	}
	return out
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getStrings(data map[string]interface{}, key string) []string {
	raw, ok := data[key].([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
