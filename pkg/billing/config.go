package billing

import (
	"net/http"

	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

// Config defines the standard configuration all providers accept
type Config struct {
	// WebhookSecret verifies incoming webhook deliveries.
	// An empty secret leaves the provider's webhook unconfigured (503).
	WebhookSecret string

	// APIKey is used for outbound API calls (payment intents, charges).
	APIKey string

	// HTTPClient is an optional HTTP client for API calls.
	// If nil, a default client with 10s timeout will be used.
	HTTPClient *http.Client

	// Metrics is an optional metrics collector.
	// Use billing/metrics/prometheus.NewMetrics for Prometheus metrics.
	Metrics Metrics

	// Logger is optional
	Logger storefront.Logger
}
