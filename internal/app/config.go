package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (RACES_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"HTTP server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (RACES_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Stripe      StripeConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// StripeConfig holds the payment provider credentials.
type StripeConfig struct {
	SecretKey     string `usage:"Stripe API secret key (RACES_STRIPE_SECRET_KEY or STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	WebhookSecret string `usage:"Stripe webhook signing secret (RACES_STRIPE_WEBHOOK_SECRET or STRIPE_WEBHOOK_SECRET)" flag:"stripe-webhook-secret"`
}

// CheckoutConfig controls the hosted checkout redirect targets.
type CheckoutConfig struct {
	SuccessURL string `default:"https://example.org/success.html?session_id={CHECKOUT_SESSION_ID}" usage:"Checkout success redirect URL" flag:"success-url"`
	CancelURL  string `default:"https://example.org/cancel.html" usage:"Checkout cancel redirect URL" flag:"cancel-url"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "RACES",
		Files:     []string{"config.yaml", "/etc/races/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set RACES_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Stripe.SecretKey == "" {
		return nil, errors.New("Stripe secret key is required: set RACES_STRIPE_SECRET_KEY or STRIPE_SECRET_KEY")
	}
	if cfg.Stripe.WebhookSecret == "" {
		return nil, errors.New("Stripe webhook secret is required: set RACES_STRIPE_WEBHOOK_SECRET or STRIPE_WEBHOOK_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Vercel,
// Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's RACES_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Stripe.SecretKey == "" {
		if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
			c.Stripe.SecretKey = v
		}
	}
	if c.Stripe.WebhookSecret == "" {
		if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
			c.Stripe.WebhookSecret = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
