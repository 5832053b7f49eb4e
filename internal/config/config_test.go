package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Attaullahwazir/Payzenix/internal/fraud"
)

const testCardKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

func validConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PAYZENIX_SECURITY_CARD_KEY", testCardKey)
	cfg, err := load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := validConfig(t)

	if cfg.HTTP.Port != 8084 {
		t.Errorf("expected default port 8084, got %d", cfg.HTTP.Port)
	}
	if cfg.Payments.RateLimit != 10 || cfg.Payments.RateWindow != time.Minute {
		t.Errorf("unexpected rate limit defaults %+v", cfg.Payments)
	}
	if cfg.Fraud.Threshold != fraud.DefaultThreshold {
		t.Errorf("expected default threshold, got %v", cfg.Fraud.Threshold)
	}
	if cfg.FraudPolicy() != fraud.DefaultPolicy() {
		t.Errorf("expected default fraud policy, got %+v", cfg.FraudPolicy())
	}
	if len(cfg.Payments.DeclineCards) != 2 {
		t.Errorf("expected default decline cards, got %v", cfg.Payments.DeclineCards)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults plus secrets to validate, got %v", err)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://legacy")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("PAYZENIX_PAYMENTS_OPERATION_TIMEOUT", "3s")
	t.Setenv("PAYZENIX_FRAUD_THRESHOLD", "0.7")
	t.Setenv("PAYZENIX_EVENTS_KAFKA_BROKERS", "k1:9092,k2:9092")
	cfg := validConfig(t)

	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected PORT to apply, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.URL != "postgres://legacy" {
		t.Errorf("expected DATABASE_URL to apply, got %q", cfg.Database.URL)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Errorf("expected REDIS_ADDR to apply, got %q", cfg.Redis.Addr)
	}
	if cfg.Security.JWTSecret != "test-secret" {
		t.Error("expected JWT_SECRET to apply")
	}
	if cfg.Payments.OperationTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", cfg.Payments.OperationTimeout)
	}
	if cfg.Fraud.Threshold != 0.7 {
		t.Errorf("expected threshold 0.7, got %v", cfg.Fraud.Threshold)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Events.KafkaBrokers)
	}
}

func TestPrefixedNameWinsOverLegacy(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PAYZENIX_HTTP_PORT", "7070")
	cfg := validConfig(t)
	if cfg.HTTP.Port != 7070 {
		t.Errorf("expected PAYZENIX_HTTP_PORT to win, got %d", cfg.HTTP.Port)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payzenix.yaml")
	content := `
database:
  driver: sqlite3
  url: file:payments.db
redis:
  enabled: false
events:
  backend: none
fraud:
  threshold: 0.9
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PAYZENIX_SECURITY_CARD_KEY", testCardKey)

	cfg, err := load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite3" || cfg.Redis.Enabled || cfg.Events.Backend != "none" {
		t.Errorf("config file not applied: %+v", cfg)
	}
	if cfg.Fraud.Threshold != 0.9 {
		t.Errorf("expected threshold 0.9, got %v", cfg.Fraud.Threshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing jwt secret", func(c *Config) { c.Security.JWTSecret = "" }, "JWT_SECRET"},
		{"short card key", func(c *Config) { c.Security.CardKey = "c2hvcnQ=" }, "card_key"},
		{"missing card key", func(c *Config) { c.Security.CardKey = "" }, "card_key"},
		{"threshold above one", func(c *Config) { c.Fraud.Threshold = 1.5 }, "threshold"},
		{"zero threshold", func(c *Config) { c.Fraud.Threshold = 0 }, "threshold"},
		{"negative weight", func(c *Config) { c.Fraud.WeightNewIP = -0.1 }, "weight_new_ip"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"unknown events backend", func(c *Config) { c.Events.Backend = "nats" }, "events.backend"},
		{"redis events without redis", func(c *Config) { c.Redis.Enabled = false }, "requires redis.enabled"},
		{"kafka without brokers", func(c *Config) {
			c.Events.Backend = "kafka"
			c.Events.KafkaBrokers = nil
		}, "kafka_brokers"},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"zero rate limit", func(c *Config) { c.Payments.RateLimit = 0 }, "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHTTPAddr(t *testing.T) {
	if got := (HTTPConfig{Host: "127.0.0.1", Port: 8084}).Addr(); got != "127.0.0.1:8084" {
		t.Errorf("unexpected addr %q", got)
	}
}
