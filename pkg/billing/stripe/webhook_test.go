package stripe

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

const (
	testWebhookSecret = "whsec_test_secret"
	testAPIKey        = "sk_test_123"
	testUserID        = "user_123"
)

func newWebhookProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(Config{Config: billing.Config{WebhookSecret: testWebhookSecret}})
	require.NoError(t, err)
	return p
}

func paymentIntentEvent(t *testing.T, eventType string, metadata map[string]string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":          "evt_test_1",
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"created":     time.Now().Unix(),
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":            "pi_test_1",
				"object":        "payment_intent",
				"amount":        4999,
				"currency":      "usd",
				"customer":      "cus_test_1",
				"receipt_email": "buyer@example.com",
				"metadata":      metadata,
			},
		},
	})
	require.NoError(t, err)
	return body
}

func signedHeader(t *testing.T, payload []byte, secret string) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  secret,
	})
	header := http.Header{}
	header.Set("Stripe-Signature", signed.Header)
	return header
}

func TestNewProvider_RequiresCredentials(t *testing.T) {
	_, err := NewProvider(Config{})
	assert.ErrorIs(t, err, billing.ErrProviderNotConfigured)

	p, err := NewProvider(Config{Config: billing.Config{APIKey: testAPIKey}})
	require.NoError(t, err)
	assert.False(t, p.WebhookConfigured())
	assert.Equal(t, "stripe", p.Name())

	_, err = p.Normalize([]byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, billing.ErrProviderNotConfigured)
}

func TestNormalize_PaymentSucceeded(t *testing.T) {
	p := newWebhookProvider(t)
	payload := paymentIntentEvent(t, eventPaymentSucceeded, map[string]string{
		"userId": testUserID,
		"items":  `[{"name":"Kirk Client","price":49.99,"quantity":1},{"name":"Merch"}]`,
	})

	event, err := p.Normalize(payload, signedHeader(t, payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, billing.EventPaymentSucceeded, event.Kind)
	assert.Equal(t, "stripe", event.Provider)
	assert.Equal(t, "evt_test_1", event.EventID)
	assert.Equal(t, testUserID, event.UserID)
	assert.Equal(t, "pi_test_1", event.ExternalID)
	assert.InDelta(t, 49.99, event.Amount, 0.0001)
	assert.Equal(t, "usd", event.Currency)
	assert.Equal(t, []string{"Kirk Client", "Merch"}, storefront.ItemNames(event.Items))

	details, ok := event.Details.(*billing.CardDetails)
	require.True(t, ok)
	assert.Equal(t, "pi_test_1", details.PaymentIntentID)
	assert.Equal(t, "cus_test_1", details.CustomerID)
	assert.Equal(t, storefront.PaymentMethodStripeCard, details.PaymentMethod())
}

func TestNormalize_MissingMetadataIsGuest(t *testing.T) {
	p := newWebhookProvider(t)
	payload := paymentIntentEvent(t, eventPaymentSucceeded, nil)

	event, err := p.Normalize(payload, signedHeader(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, storefront.GuestUserID, event.UserID)
	assert.Empty(t, event.Items)
}

func TestNormalize_InvalidSignature(t *testing.T) {
	p := newWebhookProvider(t)
	payload := paymentIntentEvent(t, eventPaymentSucceeded, map[string]string{"userId": testUserID})

	tests := []struct {
		name   string
		header http.Header
	}{
		{"missing header", http.Header{}},
		{"wrong secret", signedHeader(t, payload, "whsec_other")},
		{"garbage header", http.Header{"Stripe-Signature": []string{"not-a-signature"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Normalize(payload, tt.header)
			assert.ErrorIs(t, err, billing.ErrInvalidWebhookSignature)
		})
	}
}

func TestNormalize_TamperedPayload(t *testing.T) {
	p := newWebhookProvider(t)
	payload := paymentIntentEvent(t, eventPaymentSucceeded, map[string]string{"userId": testUserID})
	header := signedHeader(t, payload, testWebhookSecret)

	tampered := paymentIntentEvent(t, eventPaymentSucceeded, map[string]string{"userId": "attacker"})
	_, err := p.Normalize(tampered, header)
	assert.ErrorIs(t, err, billing.ErrInvalidWebhookSignature)
}

func TestNormalize_InvalidItemsMetadata(t *testing.T) {
	p := newWebhookProvider(t)
	payload := paymentIntentEvent(t, eventPaymentSucceeded, map[string]string{
		"userId": testUserID,
		"items":  "not json",
	})

	_, err := p.Normalize(payload, signedHeader(t, payload, testWebhookSecret))
	assert.ErrorIs(t, err, billing.ErrInvalidWebhookPayload)
}

func TestNormalize_PaymentFailedAndIgnored(t *testing.T) {
	p := newWebhookProvider(t)

	failed := paymentIntentEvent(t, eventPaymentFailed, map[string]string{"userId": testUserID})
	event, err := p.Normalize(failed, signedHeader(t, failed, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, billing.EventPaymentFailed, event.Kind)
	assert.Equal(t, "pi_test_1", event.ExternalID)

	other := paymentIntentEvent(t, "customer.created", nil)
	event, err = p.Normalize(other, signedHeader(t, other, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, billing.EventIgnored, event.Kind)
	assert.Equal(t, "customer.created", event.EventType)
	assert.Nil(t, event.Details)
}
