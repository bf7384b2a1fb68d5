package stripe

import (
	"strings"

	"github.com/stripe/stripe-go/v83"

	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

const (
	providerName    = billing.ProviderStripe
	defaultCurrency = "usd"

	metadataUserID = "userId"
	metadataItems  = "items"
)

// Config extends billing.Config with Stripe-specific options
type Config struct {
	billing.Config

	// Currency for payment intents when the request names none. Defaults to "usd".
	Currency string

	// APIURL overrides the Stripe API base URL (stripe-mock, tests)
	APIURL string
}

// Provider verifies Stripe webhooks and creates payment intents
type Provider struct {
	webhookSecret string
	stripeClient  *stripe.Client
	currency      string
	metrics       billing.Metrics
	logger        storefront.Logger
}

// NewProvider creates a new Stripe provider.
// Either an API key or a webhook secret must be set; each enables its half of the provider.
func NewProvider(config Config) (*Provider, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	webhookSecret := strings.TrimSpace(config.WebhookSecret)
	if apiKey == "" && webhookSecret == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	var stripeClient *stripe.Client
	if apiKey != "" {
		var opts []stripe.ClientOption
		if config.APIURL != "" || config.HTTPClient != nil {
			backendConfig := &stripe.BackendConfig{HTTPClient: config.HTTPClient}
			if config.APIURL != "" {
				backendConfig.URL = stripe.String(config.APIURL)
			}
			opts = append(opts, stripe.WithBackends(stripe.NewBackendsWithConfig(backendConfig)))
		}
		stripeClient = stripe.NewClient(apiKey, opts...)
	}

	currency := strings.ToLower(strings.TrimSpace(config.Currency))
	if currency == "" {
		currency = defaultCurrency
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
		webhookSecret: webhookSecret,
		stripeClient:  stripeClient,
		currency:      currency,
		metrics:       metrics,
		logger:        logger,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookConfigured reports whether a webhook endpoint secret is set
func (p *Provider) WebhookConfigured() bool {
	return p.webhookSecret != ""
}

var _ billing.Normalizer = (*Provider)(nil)
