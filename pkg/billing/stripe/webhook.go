package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

const (
	eventPaymentSucceeded = "payment_intent.succeeded"
	eventPaymentFailed    = "payment_intent.payment_failed"
)

// Normalize verifies the Stripe-Signature header over the raw payload and
// converts payment intent events into a billing.NormalizedEvent.
func (p *Provider) Normalize(payload []byte, header http.Header) (*billing.NormalizedEvent, error) {
	if !p.WebhookConfigured() {
		return nil, billing.ErrProviderNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", billing.ErrInvalidWebhookSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", billing.ErrInvalidWebhookPayload, err)
	}

	normalized := &billing.NormalizedEvent{
		Provider:  providerName,
		Kind:      billing.EventIgnored,
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	switch string(event.Type) {
	case eventPaymentSucceeded:
		pi, err := decodePaymentIntent(&event)
		if err != nil {
			return nil, err
		}
		items, err := decodeItems(pi.Metadata[metadataItems])
		if err != nil {
			return nil, err
		}
		normalized.Kind = billing.EventPaymentSucceeded
		normalized.UserID = storefront.UserIDOrGuest(pi.Metadata[metadataUserID])
		normalized.Email = pi.ReceiptEmail
		normalized.Items = items
		normalized.ExternalID = pi.ID
		normalized.Amount = float64(pi.Amount) / 100
		normalized.Currency = string(pi.Currency)
		normalized.Details = cardDetails(pi)
	case eventPaymentFailed:
		normalized.Kind = billing.EventPaymentFailed
		if pi, err := decodePaymentIntent(&event); err == nil {
			normalized.ExternalID = pi.ID
			normalized.UserID = storefront.UserIDOrGuest(pi.Metadata[metadataUserID])
			normalized.Details = cardDetails(pi)
		}
	}

	return normalized, nil
}

func decodePaymentIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: missing event data", billing.ErrInvalidWebhookPayload)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: payment intent: %v", billing.ErrInvalidWebhookPayload, err)
	}
	return &pi, nil
}

// decodeItems parses the JSON-encoded items metadata. Missing metadata is an empty list.
func decodeItems(raw string) ([]storefront.Item, error) {
	if raw == "" {
		return []storefront.Item{}, nil
	}
	var items []storefront.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: items metadata: %v", billing.ErrInvalidWebhookPayload, err)
	}
	if items == nil {
		items = []storefront.Item{}
	}
	return items, nil
}

func cardDetails(pi *stripe.PaymentIntent) *billing.CardDetails {
	details := &billing.CardDetails{PaymentIntentID: pi.ID}
	if pi.Customer != nil {
		details.CustomerID = pi.Customer.ID
	}
	return details
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrTooOld)
}
