package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func load(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return LoadWith(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"JWT_SECRET":   testSecret,
		"DATABASE_URL": "postgres://localhost/true_feedback",
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != "0.0.0.0" {
		t.Errorf("ServerAddr = %q, want %q", cfg.ServerAddr, "0.0.0.0")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.StoreDriver != "postgres" {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, "postgres")
	}
	if cfg.JWTIssuer != "true-feedback" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "true-feedback")
	}
	if cfg.SessionTTL != 720*time.Hour {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, 720*time.Hour)
	}
	if cfg.VerifyCodeTTL != time.Hour {
		t.Errorf("VerifyCodeTTL = %v, want %v", cfg.VerifyCodeTTL, time.Hour)
	}
	if cfg.MaxRequestBodySize != 1<<20 {
		t.Errorf("MaxRequestBodySize = %d, want %d", cfg.MaxRequestBodySize, 1<<20)
	}
	if !cfg.SecurityHeadersEnabled {
		t.Error("SecurityHeadersEnabled = false, want true")
	}
	if cfg.HasSMTP() {
		t.Error("HasSMTP() = true, want false")
	}
	if got := cfg.ListenAddr(); got != "0.0.0.0:8080" {
		t.Errorf("ListenAddr() = %q, want %q", got, "0.0.0.0:8080")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"JWT_SECRET":    testSecret,
		"STORE_DRIVER":  "SQLite",
		"DATABASE_URL":  "./data/feedback.db",
		"APP_BASE_URL":  "https://feedback.example.com/",
		"SESSION_TTL":   "24h",
		"SMTP_HOST":     "smtp.example.com",
		"SMTP_PORT":     "2525",
		"COOKIE_SECURE": "true",
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.StoreDriver != "sqlite" {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, "sqlite")
	}
	if cfg.AppBaseURL != "https://feedback.example.com" {
		t.Errorf("AppBaseURL = %q, want %q", cfg.AppBaseURL, "https://feedback.example.com")
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, 24*time.Hour)
	}
	if !cfg.HasSMTP() || cfg.SMTPPort != 2525 {
		t.Errorf("SMTP = %q:%d, want smtp.example.com:2525", cfg.SMTPHost, cfg.SMTPPort)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure = false, want true")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing secret",
			env:  map[string]string{"DATABASE_URL": "postgres://localhost/db"},
		},
		{
			name: "short secret",
			env:  map[string]string{"JWT_SECRET": "short", "DATABASE_URL": "postgres://localhost/db"},
		},
		{
			name: "unknown driver",
			env:  map[string]string{"JWT_SECRET": testSecret, "STORE_DRIVER": "redis"},
		},
		{
			name: "sql driver without database url",
			env:  map[string]string{"JWT_SECRET": testSecret, "STORE_DRIVER": "sqlite"},
		},
		{
			name: "bad duration",
			env:  map[string]string{"JWT_SECRET": testSecret, "DATABASE_URL": "x", "SESSION_TTL": "forever"},
		},
		{
			name: "non-positive session ttl",
			env:  map[string]string{"JWT_SECRET": testSecret, "DATABASE_URL": "x", "SESSION_TTL": "0s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load(t, tt.env); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestLoad_Mongo(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"JWT_SECRET":   testSecret,
		"STORE_DRIVER": "mongo",
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("MongoURI = %q, want default", cfg.MongoURI)
	}
	if cfg.MongoDatabase != "true_feedback" {
		t.Errorf("MongoDatabase = %q, want %q", cfg.MongoDatabase, "true_feedback")
	}
}
