// Package config loads service configuration from an optional YAML file and KIRK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

// EnvPrefix prefixes every environment override, e.g. KIRK_STRIPE_SECRET_KEY
const EnvPrefix = "KIRK"

// ErrMissingSetting is wrapped by Validate for every required key left empty
var ErrMissingSetting = errors.New("missing setting")

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Firestore    FirestoreConfig    `mapstructure:"firestore"`
	Collections  CollectionsConfig  `mapstructure:"collections"`
	Stripe       StripeConfig       `mapstructure:"stripe"`
	Coinbase     CoinbaseConfig     `mapstructure:"coinbase"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Admin        AdminConfig        `mapstructure:"admin"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	// TrustProxy takes the client address from X-Real-IP / X-Forwarded-For.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type FirestoreConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type CollectionsConfig struct {
	Users          string `mapstructure:"users"`
	Orders         string `mapstructure:"orders"`
	CryptoPayments string `mapstructure:"crypto_payments"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Currency      string `mapstructure:"currency"`
	APIURL        string `mapstructure:"api_url"`
}

type CoinbaseConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	BaseURL       string `mapstructure:"base_url"`
	Currency      string `mapstructure:"currency"`
	ChargeName    string `mapstructure:"charge_name"`
	RedirectURL   string `mapstructure:"redirect_url"`
	CancelURL     string `mapstructure:"cancel_url"`
}

// RedisConfig enables the shared webhook event ledger when Addr is set.
// Without it the in-process ledger is used.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type SubscriptionConfig struct {
	TierPolicy string `mapstructure:"tier_policy"`
	// Catalog lists the products that grant a tier. Names are matched exactly.
	// A list keeps names verbatim; viper lowercases map keys.
	Catalog []CatalogEntry `mapstructure:"catalog"`
}

type CatalogEntry struct {
	Name string `mapstructure:"name"`
	Tier string `mapstructure:"tier"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", 256*1024)
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_window", time.Minute)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("firestore.project_id", "")
	v.SetDefault("firestore.credentials_file", "")

	v.SetDefault("collections.users", "users")
	v.SetDefault("collections.orders", "orders")
	v.SetDefault("collections.crypto_payments", "crypto_payments")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("stripe.api_url", "")

	v.SetDefault("coinbase.api_key", "")
	v.SetDefault("coinbase.webhook_secret", "")
	v.SetDefault("coinbase.base_url", "https://api.commerce.coinbase.com")
	v.SetDefault("coinbase.currency", "USD")
	v.SetDefault("coinbase.charge_name", "Kirk Client Purchase")
	v.SetDefault("coinbase.redirect_url", "")
	v.SetDefault("coinbase.cancel_url", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "kirk:webhook:")
	v.SetDefault("redis.ttl", 72*time.Hour)

	v.SetDefault("subscription.tier_policy", string(storefront.PolicyReplace))

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type"})

	v.SetDefault("admin.token", "")
}

// Load reads configuration from path (optional; empty skips the file) and the
// environment. Environment variables override the file, e.g. KIRK_SERVER_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if len(cfg.Subscription.Catalog) == 0 {
		cfg.Subscription.Catalog = defaultCatalog()
	}
	return &cfg, nil
}

// Validate reports settings the server cannot run without
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("%w: server.addr", ErrMissingSetting))
	}
	if c.Stripe.SecretKey == "" && c.Stripe.WebhookSecret == "" &&
		c.Coinbase.APIKey == "" && c.Coinbase.WebhookSecret == "" {
		errs = append(errs, fmt.Errorf("%w: at least one of stripe or coinbase must be configured", ErrMissingSetting))
	}
	if _, err := storefront.ParseTierPolicy(c.Subscription.TierPolicy); err != nil {
		errs = append(errs, err)
	}
	for i, entry := range c.Subscription.Catalog {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("subscription.catalog[%d]: name is required", i))
		}
		if !storefront.Tier(strings.ToLower(strings.TrimSpace(entry.Tier))).Valid() {
			errs = append(errs, fmt.Errorf("subscription.catalog[%d] %q: unknown tier %q", i, entry.Name, entry.Tier))
		}
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative"))
	}
	return errors.Join(errs...)
}

// Catalog converts the configured catalog into storefront tiers
func (c *Config) Catalog() map[string]storefront.Tier {
	catalog := make(map[string]storefront.Tier, len(c.Subscription.Catalog))
	for _, entry := range c.Subscription.Catalog {
		catalog[entry.Name] = storefront.ParseTier(entry.Tier)
	}
	return catalog
}

func defaultCatalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(storefront.DefaultCatalog))
	for name, tier := range storefront.DefaultCatalog {
		entries = append(entries, CatalogEntry{Name: name, Tier: string(tier)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}
