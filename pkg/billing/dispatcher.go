package billing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing/internal"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

const (
	defaultMaxBodyBytes      = 256 * 1024
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
)

// SubscriptionUpdater applies the tier implied by purchased items to an account
type SubscriptionUpdater interface {
	ApplySubscription(ctx context.Context, userID string, items []storefront.Item) (storefront.Tier, error)
}

// OrderStore persists orders and completes pending crypto payments
type OrderStore interface {
	AddOrder(ctx context.Context, order *storefront.Order) (string, error)
	CompleteCryptoPayments(ctx context.Context, chargeID string, completedAt time.Time) (int, error)
}

// DispatcherConfig configures a Dispatcher
type DispatcherConfig struct {
	// Normalizer verifies and parses deliveries (required)
	Normalizer Normalizer

	// Updater writes subscription tiers (required)
	Updater SubscriptionUpdater

	// Orders persists orders and pending payment transitions (required)
	Orders OrderStore

	// Ledger suppresses redelivered events. Optional.
	Ledger EventLedger

	Metrics Metrics
	Logger  storefront.Logger

	// MaxBodyBytes defaults to 256KB
	MaxBodyBytes int64

	// RateLimitRequests per RateLimitWindow per client IP. Defaults to 100/minute.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Now overrides the clock in tests
	Now func() time.Time
}

// Dispatcher is the webhook endpoint for one payment provider. It verifies and
// normalizes each delivery, then reconciles succeeded payments into the store.
type Dispatcher struct {
	normalizer   Normalizer
	updater      SubscriptionUpdater
	orders       OrderStore
	ledger       EventLedger
	metrics      Metrics
	logger       storefront.Logger
	maxBodyBytes int64
	now          func() time.Time
	handler      http.Handler
}

// NewDispatcher creates a webhook dispatcher
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Normalizer == nil || config.Updater == nil || config.Orders == nil {
		return nil, ErrProviderNotConfigured
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = &storefront.NoopLogger{}
	}
	maxBody := config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	limit := config.RateLimitRequests
	if limit <= 0 {
		limit = defaultRateLimitRequests
	}
	window := config.RateLimitWindow
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	d := &Dispatcher{
		normalizer:   config.Normalizer,
		updater:      config.Updater,
		orders:       config.Orders,
		ledger:       config.Ledger,
		metrics:      metrics,
		logger:       logger,
		maxBodyBytes: maxBody,
		now:          now,
	}
	d.handler = internal.NewRateLimiter(limit, window).Middleware(http.HandlerFunc(d.handleWebhook))
	return d, nil
}

// ServeHTTP implements http.Handler
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.handler.ServeHTTP(w, r)
}

func (d *Dispatcher) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := d.now()
	provider := d.normalizer.Name()
	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !d.normalizer.WebhookConfigured() {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		d.metrics.RecordWebhookError(provider, "not_configured")
		return
	}

	body, err := internal.ReadBodyStrict(w, r, d.maxBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			d.metrics.RecordWebhookError(provider, "payload_too_large")
		} else {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			d.metrics.RecordWebhookError(provider, "invalid_payload")
		}
		return
	}

	event, err := d.normalizer.Normalize(body, r.Header)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidWebhookSignature):
			d.logger.Warn("webhook signature verification failed",
				storefront.Field{Key: "provider", Value: provider},
				storefront.Field{Key: "error", Value: err})
			http.Error(w, "invalid signature", http.StatusBadRequest)
			d.metrics.RecordWebhookError(provider, "auth_failed")
		default:
			d.logger.Warn("webhook payload rejected",
				storefront.Field{Key: "provider", Value: provider},
				storefront.Field{Key: "error", Value: err})
			http.Error(w, "invalid payload", http.StatusBadRequest)
			d.metrics.RecordWebhookError(provider, "invalid_payload")
		}
		return
	}

	status := "success"
	if err := d.Dispatch(r.Context(), event); err != nil {
		// The delivery is still acknowledged; failures are visible in logs and metrics only
		status = "error"
		d.metrics.RecordWebhookError(provider, "processing_error")
		d.logger.Error("webhook reconciliation failed",
			storefront.Field{Key: "provider", Value: provider},
			storefront.Field{Key: "event_id", Value: event.EventID},
			storefront.Field{Key: "event_type", Value: event.EventType},
			storefront.Field{Key: "error", Value: err})
	}

	d.metrics.RecordWebhookEvent(provider, event.EventType, status)
	d.metrics.RecordWebhookProcessingDuration(provider, event.EventType, d.now().Sub(startTime))
	_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// Dispatch acts on a normalized event. For succeeded payments it updates the
// subscription (accounts only), records an order and, for crypto payments,
// completes matching pending records. The steps run independently; their
// errors are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, event *NormalizedEvent) error {
	fields := []storefront.Field{
		{Key: "provider", Value: event.Provider},
		{Key: "event_id", Value: event.EventID},
		{Key: "event_type", Value: event.EventType},
	}

	switch event.Kind {
	case EventPaymentSucceeded:
	case EventPaymentFailed:
		d.logger.Warn("payment failed", append(fields, storefront.Field{Key: "external_id", Value: event.ExternalID})...)
		return nil
	case EventIgnored:
		d.logger.Debug("unhandled webhook event", fields...)
		return nil
	default:
		return ErrUnknownEventKind
	}

	claimed := false
	if d.ledger != nil && event.EventID != "" {
		first, err := d.ledger.Claim(ctx, event.Provider, event.EventID)
		switch {
		case err != nil:
			d.logger.Warn("event ledger unavailable", append(fields, storefront.Field{Key: "error", Value: err})...)
		case !first:
			d.logger.Info("duplicate webhook delivery", fields...)
			d.metrics.RecordWebhookEvent(event.Provider, event.EventType, "duplicate")
			return nil
		default:
			claimed = true
		}
	}

	err := d.reconcile(ctx, event)
	if err != nil && claimed {
		if releaseErr := d.ledger.Release(ctx, event.Provider, event.EventID); releaseErr != nil {
			d.logger.Warn("failed to release event claim", append(fields, storefront.Field{Key: "error", Value: releaseErr})...)
		}
	}
	return err
}

func (d *Dispatcher) reconcile(ctx context.Context, event *NormalizedEvent) error {
	var errs []error
	userID := storefront.UserIDOrGuest(event.UserID)

	if !storefront.IsGuest(userID) {
		tier, err := d.updater.ApplySubscription(ctx, userID, event.Items)
		if err != nil {
			d.metrics.RecordSubscriptionApplied(event.Provider, string(tier), "error")
			errs = append(errs, err)
		} else {
			d.metrics.RecordSubscriptionApplied(event.Provider, string(tier), "success")
		}
	}

	order := d.orderFromEvent(event, userID)
	orderID, err := d.orders.AddOrder(ctx, order)
	if err != nil {
		d.metrics.RecordOrder(event.Provider, string(order.PaymentMethod), "error")
		errs = append(errs, err)
	} else {
		d.metrics.RecordOrder(event.Provider, string(order.PaymentMethod), "success")
		d.logger.Info("order recorded",
			storefront.Field{Key: "provider", Value: event.Provider},
			storefront.Field{Key: "order_id", Value: orderID},
			storefront.Field{Key: "user_id", Value: userID},
			storefront.Field{Key: "amount", Value: event.Amount},
			storefront.Field{Key: "currency", Value: event.Currency})
	}

	if _, ok := event.Details.(*CryptoDetails); ok {
		completed, err := d.orders.CompleteCryptoPayments(ctx, event.ExternalID, d.now().UTC())
		if err != nil {
			errs = append(errs, err)
		}
		d.metrics.RecordPendingPaymentsCompleted(event.Provider, completed)
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) orderFromEvent(event *NormalizedEvent, userID string) *storefront.Order {
	order := &storefront.Order{
		Provider:   event.Provider,
		ExternalID: event.ExternalID,
		UserID:     userID,
		Amount:     event.Amount,
		Currency:   event.Currency,
		Items:      event.Items,
		Status:     storefront.OrderStatusCompleted,
		CreatedAt:  d.now().UTC(),
	}
	if event.Details != nil {
		order.PaymentMethod = event.Details.PaymentMethod()
	}
	if crypto, ok := event.Details.(*CryptoDetails); ok {
		order.ChargeCode = crypto.ChargeCode
		order.Cryptocurrency = crypto.Cryptocurrency
		if order.Cryptocurrency == "" {
			order.Cryptocurrency = storefront.UnknownCryptocurrency
		}
	}
	return order
}
