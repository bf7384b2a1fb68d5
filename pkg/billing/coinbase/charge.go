package coinbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

const chargesEndpoint = "/charges"

// ChargeRequest describes a crypto payment the storefront wants to collect
type ChargeRequest struct {
	// Amount in major currency units
	Amount   float64
	Currency string
	Email    string
	UserID   string
	Items    []storefront.Item
}

// Charge is the hosted checkout created for a ChargeRequest
type Charge struct {
	ID        string `json:"chargeId"`
	HostedURL string `json:"hostedUrl"`
	Code      string `json:"code"`
}

type createChargeRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	PricingType string            `json:"pricing_type"`
	LocalPrice  money             `json:"local_price"`
	Metadata    map[string]string `json:"metadata"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	CancelURL   string            `json:"cancel_url,omitempty"`
}

type createChargeResponse struct {
	Data struct {
		ID        string `json:"id"`
		Code      string `json:"code"`
		HostedURL string `json:"hosted_url"`
	} `json:"data"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCharge creates a fixed-price charge carrying the user id, email and
// JSON-encoded items as metadata.
func (p *Provider) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return nil, storefront.ErrInvalidAmount
	}
	if p.apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	items := req.Items
	if items == nil {
		items = []storefront.Item{}
	}
	encodedItems, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode items: %w", err)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = p.currency
	}
	buyer := req.Email
	if buyer == "" {
		buyer = "customer"
	}

	payload, err := json.Marshal(createChargeRequest{
		Name:        p.chargeName,
		Description: "Purchase for " + buyer,
		PricingType: "fixed_price",
		LocalPrice: money{
			Amount:   strconv.FormatFloat(req.Amount, 'f', 2, 64),
			Currency: currency,
		},
		Metadata: map[string]string{
			metadataUserID: storefront.UserIDOrGuest(req.UserID),
			metadataEmail:  req.Email,
			metadataItems:  string(encodedItems),
		},
		RedirectURL: p.redirectURL,
		CancelURL:   p.cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode charge: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+chargesEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(apiKeyHeader, p.apiKey)
	httpReq.Header.Set(versionHeader, p.apiVersion)

	startTime := time.Now()
	res, err := p.httpClient.Do(httpReq)
	p.metrics.RecordAPICallDuration(providerName, chargesEndpoint, time.Since(startTime))
	if err != nil {
		p.metrics.RecordAPICall(providerName, chargesEndpoint, "error")
		return nil, fmt.Errorf("failed to create charge: %w", err)
	}
	defer res.Body.Close()
	p.metrics.RecordAPICall(providerName, chargesEndpoint, strconv.Itoa(res.StatusCode))

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed createChargeResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("%w: status %d: %s", billing.ErrProviderAPIError, res.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("%w: status %d", billing.ErrProviderAPIError, res.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if parsed.Data.ID == "" {
		return nil, fmt.Errorf("%w: charge id missing from response", billing.ErrProviderAPIError)
	}

	p.logger.Info("crypto charge created",
		storefront.Field{Key: "charge_id", Value: parsed.Data.ID},
		storefront.Field{Key: "charge_code", Value: parsed.Data.Code},
		storefront.Field{Key: "amount", Value: req.Amount},
		storefront.Field{Key: "currency", Value: currency})

	return &Charge{
		ID:        parsed.Data.ID,
		HostedURL: parsed.Data.HostedURL,
		Code:      parsed.Data.Code,
	}, nil
}
