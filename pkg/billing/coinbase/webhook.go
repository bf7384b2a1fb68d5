package coinbase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

const (
	eventChargeConfirmed = "charge:confirmed"
	eventChargeFailed    = "charge:failed"
)

// webhookPayload accepts both the enveloped delivery ({"event": {...}}) and a bare event
type webhookPayload struct {
	ID    string        `json:"id"`
	Type  string        `json:"type"`
	Data  *charge       `json:"data"`
	Event *webhookEvent `json:"event"`
}

type webhookEvent struct {
	ID   string  `json:"id"`
	Type string  `json:"type"`
	Data *charge `json:"data"`
}

type charge struct {
	ID       string            `json:"id"`
	Code     string            `json:"code"`
	Metadata map[string]string `json:"metadata"`
	Pricing  struct {
		Local *money `json:"local"`
	} `json:"pricing"`
	Payments []struct {
		Value struct {
			Crypto *money `json:"crypto"`
		} `json:"value"`
	} `json:"payments"`
}

type money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Normalize verifies X-CC-Webhook-Signature over the raw payload and converts
// charge events into a billing.NormalizedEvent.
func (p *Provider) Normalize(payload []byte, header http.Header) (*billing.NormalizedEvent, error) {
	if !p.WebhookConfigured() {
		return nil, billing.ErrProviderNotConfigured
	}
	if !p.verifySignature(header.Get(signatureHeader), payload) {
		return nil, billing.ErrInvalidWebhookSignature
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrInvalidWebhookPayload, err)
	}

	eventID, eventType, data := body.ID, body.Type, body.Data
	if body.Event != nil {
		eventID, eventType, data = body.Event.ID, body.Event.Type, body.Event.Data
		if eventID == "" {
			eventID = body.ID
		}
	}

	normalized := &billing.NormalizedEvent{
		Provider:  providerName,
		Kind:      billing.EventIgnored,
		EventType: eventType,
	}

	switch eventType {
	case eventChargeConfirmed:
		if data == nil || data.ID == "" {
			return nil, fmt.Errorf("%w: charge data missing", billing.ErrInvalidWebhookPayload)
		}
		items, err := decodeItems(data.Metadata[metadataItems])
		if err != nil {
			return nil, err
		}
		amount, currency, err := localPrice(data)
		if err != nil {
			return nil, err
		}
		normalized.Kind = billing.EventPaymentSucceeded
		normalized.UserID = storefront.UserIDOrGuest(data.Metadata[metadataUserID])
		normalized.Email = data.Metadata[metadataEmail]
		normalized.Items = items
		normalized.ExternalID = data.ID
		normalized.Amount = amount
		normalized.Currency = currency
		normalized.Details = &billing.CryptoDetails{
			ChargeCode:     data.Code,
			Cryptocurrency: cryptocurrency(data),
		}
	case eventChargeFailed:
		normalized.Kind = billing.EventPaymentFailed
		if data != nil {
			normalized.ExternalID = data.ID
			normalized.UserID = storefront.UserIDOrGuest(data.Metadata[metadataUserID])
			normalized.Details = &billing.CryptoDetails{ChargeCode: data.Code}
		}
	}

	if eventID == "" && normalized.ExternalID != "" {
		eventID = eventType + ":" + normalized.ExternalID
	}
	normalized.EventID = eventID
	return normalized, nil
}

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

func localPrice(c *charge) (float64, string, error) {
	if c.Pricing.Local == nil {
		return 0, "", nil
	}
	amount := strings.TrimSpace(c.Pricing.Local.Amount)
	if amount == "" {
		return 0, c.Pricing.Local.Currency, nil
	}
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: local amount %q", billing.ErrInvalidWebhookPayload, amount)
	}
	return value, c.Pricing.Local.Currency, nil
}

// cryptocurrency returns the coin of the first payment, "unknown" at any missing level
func cryptocurrency(c *charge) string {
	if len(c.Payments) == 0 || c.Payments[0].Value.Crypto == nil || c.Payments[0].Value.Crypto.Currency == "" {
		return storefront.UnknownCryptocurrency
	}
	return c.Payments[0].Value.Crypto.Currency
}
