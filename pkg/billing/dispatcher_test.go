package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing/coinbase"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing/stripe"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
	"github.com/Kirk-Client/Kirk-Site/storage/memory"
)

const coinbaseSecret = "cb_secret"

var fixedNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	storage    *memory.Storage
	dispatcher *billing.Dispatcher
}

func newFixture(t *testing.T, normalizer billing.Normalizer, ledger billing.EventLedger) *fixture {
	t.Helper()
	storage := memory.New()
	updater, err := storefront.NewUpdater(storefront.UpdaterConfig{Storage: storage})
	require.NoError(t, err)

	dispatcher, err := billing.NewDispatcher(billing.DispatcherConfig{
		Normalizer: normalizer,
		Updater:    updater,
		Orders:     storage,
		Ledger:     ledger,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return &fixture{storage: storage, dispatcher: dispatcher}
}

func newCoinbaseFixture(t *testing.T, ledger billing.EventLedger) *fixture {
	t.Helper()
	provider, err := coinbase.NewProvider(coinbase.Config{Config: billing.Config{WebhookSecret: coinbaseSecret}})
	require.NoError(t, err)
	return newFixture(t, provider, ledger)
}

func confirmedCharge(t *testing.T, eventID, userID, items string) []byte {
	t.Helper()
	metadata := map[string]string{"items": items}
	if userID != "" {
		metadata["userId"] = userID
	}
	body, err := json.Marshal(map[string]interface{}{
		"id": "delivery_" + eventID,
		"event": map[string]interface{}{
			"id":   eventID,
			"type": "charge:confirmed",
			"data": map[string]interface{}{
				"id":       "charge_1",
				"code":     "CODE1",
				"metadata": metadata,
				"pricing": map[string]interface{}{
					"local": map[string]string{"amount": "19.99", "currency": "USD"},
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func post(f *fixture, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/coinbase", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set("X-CC-Webhook-Signature", signature)
	}
	rec := httptest.NewRecorder()
	f.dispatcher.ServeHTTP(rec, req)
	return rec
}

func TestNewDispatcher_RequiresCollaborators(t *testing.T) {
	_, err := billing.NewDispatcher(billing.DispatcherConfig{})
	assert.ErrorIs(t, err, billing.ErrProviderNotConfigured)
}

func TestDispatcher_CryptoConfirmedWithoutPendingRecords(t *testing.T) {
	f := newCoinbaseFixture(t, nil)
	body := confirmedCharge(t, "evt_1", "user_1", `[{"name":"KirkLite"}]`)

	rec := post(f, body, coinbase.Sign(coinbaseSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	user, err := f.storage.GetUser(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, storefront.TierLite, user.SubscriptionType)
	assert.Equal(t, []string{"KirkLite"}, user.Purchases)

	orders := f.storage.Orders()
	require.Len(t, orders, 1)
	order := orders[0]
	assert.Equal(t, storefront.PaymentMethodCryptoCoinbase, order.PaymentMethod)
	assert.Equal(t, "charge_1", order.ExternalID)
	assert.Equal(t, "CODE1", order.ChargeCode)
	assert.Equal(t, "user_1", order.UserID)
	assert.InDelta(t, 19.99, order.Amount, 0.0001)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, storefront.OrderStatusCompleted, order.Status)
	assert.Equal(t, storefront.UnknownCryptocurrency, order.Cryptocurrency)
	assert.Equal(t, fixedNow, order.CreatedAt)

	assert.Empty(t, f.storage.CryptoPayments())
}

func TestDispatcher_CryptoConfirmedCompletesPendingRecords(t *testing.T) {
	f := newCoinbaseFixture(t, nil)
	ctx := context.Background()
	for _, chargeID := range []string{"charge_1", "charge_1", "charge_other"} {
		_, err := f.storage.AddCryptoPayment(ctx, &storefront.CryptoPayment{ChargeID: chargeID, UserID: "user_1"})
		require.NoError(t, err)
	}

	body := confirmedCharge(t, "evt_1", "user_1", `[]`)
	rec := post(f, body, coinbase.Sign(coinbaseSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)

	completed := 0
	for _, p := range f.storage.CryptoPayments() {
		if p.Status == storefront.CryptoPaymentCompleted {
			completed++
			assert.Equal(t, "charge_1", p.ChargeID)
			require.NotNil(t, p.CompletedAt)
			assert.Equal(t, fixedNow, *p.CompletedAt)
		}
	}
	assert.Equal(t, 2, completed)
}

func TestDispatcher_GuestPaymentWritesOrderOnly(t *testing.T) {
	f := newCoinbaseFixture(t, nil)
	body := confirmedCharge(t, "evt_1", "", `[{"name":"Kirk Client"}]`)

	rec := post(f, body, coinbase.Sign(coinbaseSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Zero(t, f.storage.UserWrites())
	orders := f.storage.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, storefront.GuestUserID, orders[0].UserID)
}

func TestDispatcher_InvalidSignatureWritesNothing(t *testing.T) {
	f := newCoinbaseFixture(t, nil)
	body := confirmedCharge(t, "evt_1", "user_1", `[{"name":"KirkLite"}]`)

	rec := post(f, body, coinbase.Sign("wrong", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "received")

	assert.Zero(t, f.storage.UserWrites())
	assert.Empty(t, f.storage.Orders())
}

func TestDispatcher_StripeInvalidSignatureWritesNothing(t *testing.T) {
	provider, err := stripe.NewProvider(stripe.Config{Config: billing.Config{WebhookSecret: "whsec_x"}})
	require.NoError(t, err)
	f := newFixture(t, provider, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"type":"payment_intent.succeeded"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	f.dispatcher.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.storage.Orders())
}

func TestDispatcher_HTTPErrors(t *testing.T) {
	f := newCoinbaseFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/coinbase", nil)
	rec := httptest.NewRecorder()
	f.dispatcher.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = post(f, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := []byte(strings.Repeat("a", 300*1024))
	rec = post(f, big, coinbase.Sign(coinbaseSecret, big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	garbage := []byte(`{"event":`)
	rec = post(f, garbage, coinbase.Sign(coinbaseSecret, garbage))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatcher_NotConfigured(t *testing.T) {
	provider, err := coinbase.NewProvider(coinbase.Config{Config: billing.Config{APIKey: "key"}})
	require.NoError(t, err)
	f := newFixture(t, provider, nil)

	rec := post(f, []byte(`{}`), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDispatcher_DuplicateDeliveryIsAcknowledgedOnce(t *testing.T) {
	f := newCoinbaseFixture(t, memory.NewLedger(time.Hour))
	body := confirmedCharge(t, "evt_dup", "user_1", `[{"name":"KirkLite"}]`)

	for i := 0; i < 3; i++ {
		rec := post(f, body, coinbase.Sign(coinbaseSecret, body))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	}
	assert.Len(t, f.storage.Orders(), 1)
}

func TestDispatcher_FailedAndIgnoredEventsWriteNothing(t *testing.T) {
	f := newCoinbaseFixture(t, nil)

	for _, eventType := range []string{"charge:failed", "charge:pending"} {
		body, err := json.Marshal(map[string]interface{}{
			"id":   "evt_" + eventType,
			"type": eventType,
			"data": map[string]interface{}{"id": "charge_1"},
		})
		require.NoError(t, err)

		rec := post(f, body, coinbase.Sign(coinbaseSecret, body))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, f.storage.Orders())
	assert.Zero(t, f.storage.UserWrites())
}

// Dispatch-level tests with stubbed collaborators

type stubUpdater struct {
	err   error
	calls int
}

func (s *stubUpdater) ApplySubscription(context.Context, string, []storefront.Item) (storefront.Tier, error) {
	s.calls++
	return storefront.TierLite, s.err
}

type stubOrders struct {
	orderErr    error
	completeErr error
	orders      []*storefront.Order
	completed   []string
}

func (s *stubOrders) AddOrder(_ context.Context, order *storefront.Order) (string, error) {
	if s.orderErr != nil {
		return "", s.orderErr
	}
	s.orders = append(s.orders, order)
	return "order_1", nil
}

func (s *stubOrders) CompleteCryptoPayments(_ context.Context, chargeID string, _ time.Time) (int, error) {
	s.completed = append(s.completed, chargeID)
	return 0, s.completeErr
}

type stubNormalizer struct{}

func (stubNormalizer) Name() string            { return "stub" }
func (stubNormalizer) WebhookConfigured() bool { return true }
func (stubNormalizer) Normalize([]byte, http.Header) (*billing.NormalizedEvent, error) {
	return nil, errors.New("unused")
}

type recordingLedger struct {
	claimErr error
	claims   map[string]bool
	released []string
}

func (l *recordingLedger) Claim(_ context.Context, provider, eventID string) (bool, error) {
	if l.claimErr != nil {
		return false, l.claimErr
	}
	if l.claims == nil {
		l.claims = map[string]bool{}
	}
	key := provider + ":" + eventID
	if l.claims[key] {
		return false, nil
	}
	l.claims[key] = true
	return true, nil
}

func (l *recordingLedger) Release(_ context.Context, provider, eventID string) error {
	key := provider + ":" + eventID
	delete(l.claims, key)
	l.released = append(l.released, key)
	return nil
}

func succeededCrypto() *billing.NormalizedEvent {
	return &billing.NormalizedEvent{
		Provider:   billing.ProviderCoinbase,
		Kind:       billing.EventPaymentSucceeded,
		EventID:    "evt_1",
		EventType:  "charge:confirmed",
		UserID:     "user_1",
		Items:      []storefront.Item{{Name: "KirkLite"}},
		ExternalID: "charge_1",
		Details:    &billing.CryptoDetails{ChargeCode: "C1"},
	}
}

func newStubDispatcher(t *testing.T, updater *stubUpdater, orders *stubOrders, ledger billing.EventLedger) *billing.Dispatcher {
	t.Helper()
	d, err := billing.NewDispatcher(billing.DispatcherConfig{
		Normalizer: stubNormalizer{},
		Updater:    updater,
		Orders:     orders,
		Ledger:     ledger,
	})
	require.NoError(t, err)
	return d
}

func TestDispatch_StepsRunIndependently(t *testing.T) {
	updateErr := errors.New("user write failed")
	completeErr := errors.New("pending update failed")
	updater := &stubUpdater{err: updateErr}
	orders := &stubOrders{completeErr: completeErr}
	d := newStubDispatcher(t, updater, orders, nil)

	err := d.Dispatch(context.Background(), succeededCrypto())
	assert.ErrorIs(t, err, updateErr)
	assert.ErrorIs(t, err, completeErr)
	assert.Len(t, orders.orders, 1, "order is written even when the subscription update fails")
	assert.Equal(t, []string{"charge_1"}, orders.completed)
}

func TestDispatch_CardEventSkipsPendingRecords(t *testing.T) {
	orders := &stubOrders{}
	d := newStubDispatcher(t, &stubUpdater{}, orders, nil)

	event := succeededCrypto()
	event.Provider = billing.ProviderStripe
	event.Details = &billing.CardDetails{PaymentIntentID: "pi_1"}
	require.NoError(t, d.Dispatch(context.Background(), event))

	assert.Empty(t, orders.completed)
	require.Len(t, orders.orders, 1)
	assert.Equal(t, storefront.PaymentMethodStripeCard, orders.orders[0].PaymentMethod)
	assert.Empty(t, orders.orders[0].Cryptocurrency)
}

func TestDispatch_ReleasesClaimOnFailure(t *testing.T) {
	ledger := &recordingLedger{}
	orders := &stubOrders{orderErr: errors.New("store down")}
	d := newStubDispatcher(t, &stubUpdater{}, orders, ledger)

	require.Error(t, d.Dispatch(context.Background(), succeededCrypto()))
	assert.Equal(t, []string{"coinbase:evt_1"}, ledger.released)

	orders.orderErr = nil
	require.NoError(t, d.Dispatch(context.Background(), succeededCrypto()))
	assert.Len(t, orders.orders, 1, "a replay after a failure is processed")
}

func TestDispatch_LedgerErrorFailsOpen(t *testing.T) {
	ledger := &recordingLedger{claimErr: errors.New("redis down")}
	updater := &stubUpdater{}
	orders := &stubOrders{}
	d := newStubDispatcher(t, updater, orders, ledger)

	require.NoError(t, d.Dispatch(context.Background(), succeededCrypto()))
	assert.Equal(t, 1, updater.calls)
	assert.Len(t, orders.orders, 1)
}

func TestDispatch_UnknownKind(t *testing.T) {
	d := newStubDispatcher(t, &stubUpdater{}, &stubOrders{}, nil)
	err := d.Dispatch(context.Background(), &billing.NormalizedEvent{Kind: "mystery"})
	assert.ErrorIs(t, err, billing.ErrUnknownEventKind)
}
