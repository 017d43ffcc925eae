package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const minJWTSecretLength = 32

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string `env:"SERVER_ADDR,default=0.0.0.0"`
	ServerPort int    `env:"SERVER_PORT,default=8080"`
	AppBaseURL string `env:"APP_BASE_URL,default=http://localhost:8080"`

	// Store
	StoreDriver   string `env:"STORE_DRIVER,default=postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURI      string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE,default=true_feedback"`

	// Sessions
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTIssuer     string        `env:"JWT_ISSUER,default=true-feedback"`
	SessionTTL    time.Duration `env:"SESSION_TTL,default=720h"`
	VerifyCodeTTL time.Duration `env:"VERIFY_CODE_TTL,default=1h"`

	// Email validation
	StrictEmailValidation bool `env:"STRICT_EMAIL_VALIDATION,default=true"`
	BlockDisposableEmail  bool `env:"BLOCK_DISPOSABLE_EMAIL,default=false"`

	// SMTP. Verification codes are only logged when SMTPHost is empty.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM,default=no-reply@truefeedback.local"`
	SMTPFromName string `env:"SMTP_FROM_NAME,default=True Feedback"`

	// HTTP hardening
	MaxRequestBodySize     int64 `env:"MAX_REQUEST_BODY_SIZE,default=1048576"`
	SecurityHeadersEnabled bool  `env:"SECURITY_HEADERS_ENABLED,default=true"`
	CookieSecure           bool  `env:"COOKIE_SECURE,default=false"`

	// Observability
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogFormat      string `env:"LOG_FORMAT,default=json"`
	MetricsEnabled bool   `env:"METRICS_ENABLED,default=true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	return LoadWith(context.Background(), envconfig.OsLookuper())
}

// LoadWith loads configuration from the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, cfg, lookuper); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	switch c.StoreDriver {
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.VerifyCodeTTL <= 0 {
		return fmt.Errorf("VERIFY_CODE_TTL must be positive")
	}
	return nil
}

// HasSMTP returns true if an SMTP relay is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != ""
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}
