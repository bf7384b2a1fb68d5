package coinbase

import (
	"net/http"
	"strings"
	"time"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

const (
	providerName       = billing.ProviderCoinbase
	defaultBaseURL     = "https://api.commerce.coinbase.com"
	defaultAPIVersion  = "2018-03-22"
	defaultCurrency    = "USD"
	defaultChargeName  = "Kirk Client Purchase"
	defaultHTTPTimeout = 10 * time.Second

	signatureHeader = "X-CC-Webhook-Signature"
	apiKeyHeader    = "X-CC-Api-Key"
	versionHeader   = "X-CC-Version"

	metadataUserID = "userId"
	metadataEmail  = "email"
	metadataItems  = "items"
)

// Config extends billing.Config with Coinbase Commerce options
type Config struct {
	billing.Config

	// BaseURL of the Commerce API. Defaults to https://api.commerce.coinbase.com
	BaseURL string

	// APIVersion sent as X-CC-Version. Defaults to 2018-03-22
	APIVersion string

	// Currency for charges when the request names none. Defaults to USD.
	Currency string

	// ChargeName is shown on the hosted checkout page
	ChargeName string

	// RedirectURL and CancelURL are where the hosted checkout sends the buyer
	RedirectURL string
	CancelURL   string
}

// Provider verifies Coinbase Commerce webhooks and creates charges
type Provider struct {
	webhookSecret []byte
	apiKey        string
	baseURL       string
	apiVersion    string
	currency      string
	chargeName    string
	redirectURL   string
	cancelURL     string
	httpClient    *http.Client
	metrics       billing.Metrics
	logger        storefront.Logger
}

// NewProvider creates a new Coinbase Commerce provider.
// Either an API key or a webhook secret must be set.
func NewProvider(config Config) (*Provider, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	webhookSecret := strings.TrimSpace(config.WebhookSecret)
	if apiKey == "" && webhookSecret == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiVersion := config.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	currency := strings.ToUpper(strings.TrimSpace(config.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	chargeName := config.ChargeName
	if chargeName == "" {
		chargeName = defaultChargeName
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = &storefront.NoopLogger{}
	}

	return &Provider{
		webhookSecret: []byte(webhookSecret),
		apiKey:        apiKey,
		baseURL:       baseURL,
		apiVersion:    apiVersion,
		currency:      currency,
		chargeName:    chargeName,
		redirectURL:   config.RedirectURL,
		cancelURL:     config.CancelURL,
		httpClient:    httpClient,
		metrics:       metrics,
		logger:        logger,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookConfigured reports whether a shared webhook secret is set
func (p *Provider) WebhookConfigured() bool {
	return len(p.webhookSecret) > 0
}

var _ billing.Normalizer = (*Provider)(nil)
