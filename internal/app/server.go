package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Kirk-Client/Kirk-Site/internal/config"
	httpmw "github.com/Kirk-Client/Kirk-Site/middleware/http"
	"github.com/Kirk-Client/Kirk-Site/pkg/api"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing/coinbase"
	prommetrics "github.com/Kirk-Client/Kirk-Site/pkg/billing/metrics/prometheus"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing/stripe"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
	zerolog_adapter "github.com/Kirk-Client/Kirk-Site/pkg/storefront/logger/zerolog"
	"github.com/Kirk-Client/Kirk-Site/storage/memory"
	redisledger "github.com/Kirk-Client/Kirk-Site/storage/redis"
)

const metricsNamespace = "kirk"

// ErrNoProviders is returned when neither payment provider has credentials
var ErrNoProviders = errors.New("no payment provider configured")

// Deps are the runtime dependencies of the HTTP surface
type Deps struct {
	// Storage is required
	Storage storefront.Storage

	// Accounts enables the auth event and reconciliation routes
	Accounts api.AccountService

	// Ledger suppresses redelivered webhooks. Optional.
	Ledger billing.EventLedger

	// Registry receives billing and process metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry

	// HTTPClient is used for provider API calls. Optional.
	HTTPClient *http.Client

	Logger zerolog.Logger
}

// NewHandler builds the full HTTP surface: checkout, webhooks, account events,
// health and metrics, behind CORS and access logging.
func NewHandler(cfg *config.Config, deps Deps) (http.Handler, error) {
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	logger := zerolog_adapter.NewLogger(deps.Logger)

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	metrics := prommetrics.NewMetrics(registry, metricsNamespace)

	policy, err := storefront.ParseTierPolicy(cfg.Subscription.TierPolicy)
	if err != nil {
		return nil, err
	}
	updater, err := storefront.NewUpdater(storefront.UpdaterConfig{
		Storage:  deps.Storage,
		Resolver: storefront.NewResolver(cfg.Catalog()),
		Policy:   policy,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	if deps.Accounts != nil && cfg.Admin.Token == "" {
		logger.Warn("admin.token is empty; account routes are disabled")
	}

	apiConfig := api.Config{
		Accounts:       deps.Accounts,
		AdminToken:     cfg.Admin.Token,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         logger,
	}
	if cfg.Server.TrustProxy {
		apiConfig.Middlewares = append(apiConfig.Middlewares, middleware.RealIP)
	}
	apiConfig.Middlewares = append(apiConfig.Middlewares,
		httpmw.AccessLog(deps.Logger),
		httpmw.CORS(httpmw.CORSConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
		}),
	)
	dispatcherConfig := func(n billing.Normalizer) billing.DispatcherConfig {
		return billing.DispatcherConfig{
			Normalizer:        n,
			Updater:           updater,
			Orders:            deps.Storage,
			Ledger:            deps.Ledger,
			Metrics:           metrics,
			Logger:            logger,
			MaxBodyBytes:      cfg.Server.MaxBodyBytes,
			RateLimitRequests: cfg.Server.RateLimit,
			RateLimitWindow:   cfg.Server.RateWindow,
		}
	}

	configured := 0
	stripeProvider, err := stripe.NewProvider(stripe.Config{
		Config: billing.Config{
			APIKey:        cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			HTTPClient:    deps.HTTPClient,
			Metrics:       metrics,
			Logger:        logger,
		},
		Currency: cfg.Stripe.Currency,
		APIURL:   cfg.Stripe.APIURL,
	})
	switch {
	case errors.Is(err, billing.ErrProviderNotConfigured):
		logger.Warn("Stripe is not configured")
	case err != nil:
		return nil, err
	default:
		configured++
		dispatcher, err := billing.NewDispatcher(dispatcherConfig(stripeProvider))
		if err != nil {
			return nil, err
		}
		apiConfig.StripeWebhook = dispatcher
		if cfg.Stripe.SecretKey != "" {
			apiConfig.PaymentIntents = stripeProvider
		}
	}

	coinbaseProvider, err := coinbase.NewProvider(coinbase.Config{
		Config: billing.Config{
			APIKey:        cfg.Coinbase.APIKey,
			WebhookSecret: cfg.Coinbase.WebhookSecret,
			HTTPClient:    deps.HTTPClient,
			Metrics:       metrics,
			Logger:        logger,
		},
		BaseURL:     cfg.Coinbase.BaseURL,
		Currency:    cfg.Coinbase.Currency,
		ChargeName:  cfg.Coinbase.ChargeName,
		RedirectURL: cfg.Coinbase.RedirectURL,
		CancelURL:   cfg.Coinbase.CancelURL,
	})
	switch {
	case errors.Is(err, billing.ErrProviderNotConfigured):
		logger.Warn("Coinbase Commerce is not configured")
	case err != nil:
		return nil, err
	default:
		configured++
		dispatcher, err := billing.NewDispatcher(dispatcherConfig(coinbaseProvider))
		if err != nil {
			return nil, err
		}
		apiConfig.CoinbaseWebhook = dispatcher
		if cfg.Coinbase.APIKey != "" {
			apiConfig.Charges = coinbaseProvider
			apiConfig.CryptoPayments = deps.Storage
		}
	}
	if configured == 0 {
		return nil, ErrNoProviders
	}

	handler, err := api.NewHandler(apiConfig)
	if err != nil {
		return nil, err
	}
	return handler.Router(), nil
}

// NewLedger returns the Redis ledger when redis.addr is set, otherwise an in-process one.
// The returned close func releases the Redis client.
func NewLedger(ctx context.Context, cfg config.RedisConfig) (billing.EventLedger, func() error, error) {
	if cfg.Addr == "" {
		return memory.NewLedger(cfg.TTL), func() error { return nil }, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ledger, err := redisledger.New(client, redisledger.Config{
		KeyPrefix: cfg.KeyPrefix,
		TTL:       cfg.TTL,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if err := ledger.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Addr, err)
	}
	return ledger, client.Close, nil
}
