package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

// PaymentIntentRequest describes a card payment the storefront wants to collect
type PaymentIntentRequest struct {
	// Amount in minor currency units (cents); rounded to an integer
	Amount   float64
	Currency string
	Email    string
	UserID   string
	Items    []storefront.Item
}

// PaymentIntent is what the storefront needs to confirm the payment client-side
type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreatePaymentIntent finds or creates the customer for the request's email and
// creates a payment intent carrying the user id and items as metadata.
// The webhook reads the same metadata back on payment_intent.succeeded.
func (p *Provider) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return nil, storefront.ErrInvalidAmount
	}
	if p.stripeClient == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	userID := storefront.UserIDOrGuest(req.UserID)
	items := req.Items
	if items == nil {
		items = []storefront.Item{}
	}
	encodedItems, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode items: %w", err)
	}

	customerID, err := p.resolveCustomer(ctx, strings.TrimSpace(req.Email), userID)
	if err != nil {
		return nil, err
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = p.currency
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(int64(math.Round(req.Amount))),
		Currency: stripe.String(currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.AddMetadata(metadataUserID, userID)
	params.AddMetadata(metadataItems, string(encodedItems))

	startTime := time.Now()
	pi, err := p.stripeClient.V1PaymentIntents.Create(ctx, params)
	p.metrics.RecordAPICallDuration(providerName, "/payment_intents", time.Since(startTime))
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/payment_intents", "error")
		return nil, fmt.Errorf("%w: create payment intent: %v", billing.ErrProviderAPIError, err)
	}
	p.metrics.RecordAPICall(providerName, "/payment_intents", "success")

	p.logger.Info("payment intent created",
		storefront.Field{Key: "payment_intent_id", Value: pi.ID},
		storefront.Field{Key: "user_id", Value: userID},
		storefront.Field{Key: "amount", Value: pi.Amount},
		storefront.Field{Key: "currency", Value: currency})

	return &PaymentIntent{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
	}, nil
}

// resolveCustomer returns the first customer with email, creating one when none
// exists. Without an email no customer is attached.
func (p *Provider) resolveCustomer(ctx context.Context, email, userID string) (string, error) {
	if email == "" {
		return "", nil
	}

	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Limit = stripe.Int64(1)

	for cust, err := range p.stripeClient.V1Customers.List(ctx, listParams) {
		if err != nil {
			p.metrics.RecordAPICall(providerName, "/customers", "error")
			return "", fmt.Errorf("%w: list customers: %v", billing.ErrProviderAPIError, err)
		}
		p.metrics.RecordAPICall(providerName, "/customers", "success")
		return cust.ID, nil
	}

	createParams := &stripe.CustomerCreateParams{Email: stripe.String(email)}
	createParams.AddMetadata(metadataUserID, userID)
	cust, err := p.stripeClient.V1Customers.Create(ctx, createParams)
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/customers", "error")
		return "", fmt.Errorf("%w: create customer: %v", billing.ErrProviderAPIError, err)
	}
	p.metrics.RecordAPICall(providerName, "/customers", "created")
	return cust.ID, nil
}
