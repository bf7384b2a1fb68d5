package coinbase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

func newAPIProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewProvider(Config{
		Config:      billing.Config{APIKey: testAPIKey},
		BaseURL:     server.URL,
		RedirectURL: "https://kirk.example/success.html",
		CancelURL:   "https://kirk.example/cancel.html",
	})
	require.NoError(t, err)
	return p
}

func TestCreateCharge(t *testing.T) {
	var got createChargeRequest
	p := newAPIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charges", r.URL.Path)
		assert.Equal(t, testAPIKey, r.Header.Get("X-CC-Api-Key"))
		assert.Equal(t, "2018-03-22", r.Header.Get("X-CC-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"charge_9","code":"QWERTY","hosted_url":"https://commerce.coinbase.com/charges/QWERTY"}}`))
	})

	c, err := p.CreateCharge(context.Background(), ChargeRequest{
		Amount: 19.5,
		Email:  "buyer@example.com",
		UserID: "user_1",
		Items:  []storefront.Item{{Name: "KirkLite", Price: 19.5, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, &Charge{ID: "charge_9", HostedURL: "https://commerce.coinbase.com/charges/QWERTY", Code: "QWERTY"}, c)

	assert.Equal(t, "fixed_price", got.PricingType)
	assert.Equal(t, money{Amount: "19.50", Currency: "USD"}, got.LocalPrice)
	assert.Equal(t, "Purchase for buyer@example.com", got.Description)
	assert.Equal(t, "user_1", got.Metadata["userId"])
	assert.Equal(t, "buyer@example.com", got.Metadata["email"])
	assert.JSONEq(t, `[{"name":"KirkLite","price":19.5,"quantity":1}]`, got.Metadata["items"])
	assert.Equal(t, "https://kirk.example/success.html", got.RedirectURL)
}

func TestCreateCharge_GuestDefaults(t *testing.T) {
	var got createChargeRequest
	p := newAPIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"id":"charge_10","code":"C10","hosted_url":"https://x"}}`))
	})

	_, err := p.CreateCharge(context.Background(), ChargeRequest{Amount: 5, Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, storefront.GuestUserID, got.Metadata["userId"])
	assert.Equal(t, "", got.Metadata["email"])
	assert.Equal(t, "[]", got.Metadata["items"])
	assert.Equal(t, "EUR", got.LocalPrice.Currency)
	assert.Equal(t, "Purchase for customer", got.Description)
}

func TestCreateCharge_APIError(t *testing.T) {
	p := newAPIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"authorization_error","message":"invalid api key"}}`))
	})

	_, err := p.CreateCharge(context.Background(), ChargeRequest{Amount: 5})
	require.ErrorIs(t, err, billing.ErrProviderAPIError)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestCreateCharge_InvalidAmount(t *testing.T) {
	called := false
	p := newAPIProvider(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := p.CreateCharge(context.Background(), ChargeRequest{Amount: 0})
	assert.ErrorIs(t, err, storefront.ErrInvalidAmount)
	assert.False(t, called)
}

func TestCreateCharge_NotConfigured(t *testing.T) {
	p := newWebhookProvider(t)
	_, err := p.CreateCharge(context.Background(), ChargeRequest{Amount: 5})
	assert.ErrorIs(t, err, billing.ErrProviderNotConfigured)
}
