package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "SolPay"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultTokenTTL       = 24 * time.Hour

	// defaultMaxTopUp is 10,000,000 IDR in minor units.
	defaultMaxTopUp = int64(1_000_000_000)
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	// MaxTopUp caps a single top-up, in minor units.
	MaxTopUp int64

	// QrisSettlementMode is "sync" or "async".
	QrisSettlementMode string

	PaymentWebhookSecret string
	KYCWebhookSecret     string

	// PaymentGateway selects "sandbox" or "midtrans".
	PaymentGateway      string
	MidtransServerKey   string
	SandboxClientID     string
	SandboxClientSecret string

	AdminEmail    string
	AdminPassword string
}

// Load reads configuration values from the environment and populates a Config
// instance. DATABASE_URL and REDIS_URL are required outside development; without
// them the app falls back to in-memory backends.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  defaultTokenTTL,

		MaxTopUp:           defaultMaxTopUp,
		QrisSettlementMode: strings.ToLower(getEnv("QRIS_SETTLEMENT_MODE", "sync")),

		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		KYCWebhookSecret:     os.Getenv("KYC_WEBHOOK_SECRET"),

		PaymentGateway:      strings.ToLower(getEnv("PAYMENT_GATEWAY", "sandbox")),
		MidtransServerKey:   os.Getenv("MIDTRANS_SERVER_KEY"),
		SandboxClientID:     getEnv("SANDBOX_CLIENT_ID", "sol-sandbox"),
		SandboxClientSecret: getEnv("SANDBOX_CLIENT_SECRET", "sol-sandbox-secret"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv("IDEMPOTENCY_TTL_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL_SECONDS: %w", err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv("TOKEN_TTL_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOKEN_TTL_SECONDS: %w", err)
		}
		cfg.TokenTTL = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv("MAX_TOPUP_IDR"); v != "" {
		major, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MAX_TOPUP_IDR: %w", err)
		}
		cfg.MaxTopUp = major * 100
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
		cfg.JWTSecret = "insecure-dev-secret"
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	switch cfg.QrisSettlementMode {
	case "sync", "async":
	default:
		return Config{}, fmt.Errorf("invalid QRIS_SETTLEMENT_MODE: %q", cfg.QrisSettlementMode)
	}

	if cfg.PaymentGateway == "midtrans" && cfg.MidtransServerKey == "" {
		return Config{}, fmt.Errorf("MIDTRANS_SERVER_KEY must be set when PAYMENT_GATEWAY=midtrans")
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development-style environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
