package config

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func setValidEnv(t *testing.T) {
	t.Setenv("DB_NAME", "webpay")
	t.Setenv("DB_USER", "webpay")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("WEBPAY_API_KEY_ID", "597055555532")
	t.Setenv("WEBPAY_API_KEY_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)
	for _, key := range []string{"PORT", "AMOUNT_MIN", "AMOUNT_MAX", "TRANSACTION_TTL", "KAFKA_BROKERS", "WEBPAY_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 || cfg.AmountMin != 50 || cfg.AmountMax != 999999999 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.TransactionTTL != 10*time.Minute || cfg.WebpayTimeout != 30*time.Second {
		t.Errorf("unexpected durations ttl=%s timeout=%s", cfg.TransactionTTL, cfg.WebpayTimeout)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("expected no brokers, got %v", cfg.KafkaBrokers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("TRANSACTION_TTL", "15m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9090 || cfg.TransactionTTL != 15*time.Minute {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development")
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	setValidEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("SWEEP_INTERVAL", "often")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "PORT") || !strings.Contains(err.Error(), "SWEEP_INTERVAL") {
		t.Errorf("expected every bad key reported, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	setValidEnv(t)
	t.Setenv("WEBPAY_API_KEY_SECRET", "")
	t.Setenv("AMOUNT_MIN", "100")
	t.Setenv("AMOUNT_MAX", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "WEBPAY_API_KEY_SECRET") || !strings.Contains(err.Error(), "amount range") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{DbUser: "u", DbPassword: "p", DbHost: "db", DbPort: "5432", DbName: "webpay", SSLMode: "disable"}
	if got := cfg.DatabaseURL(); !strings.HasPrefix(got, "postgres://u:p@db:5432/webpay?sslmode=disable") {
		t.Errorf("unexpected url %s", got)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env   string
		debug bool
	}{
		{"development", true},
		{"Development", true},
		{"production", false},
	}
	for _, tt := range tests {
		logger, err := NewLogger(&Config{Env: tt.env})
		if err != nil {
			t.Fatalf("%s: %v", tt.env, err)
		}
		if got := logger.Core().Enabled(zap.DebugLevel); got != tt.debug {
			t.Errorf("%s: debug enabled = %v, want %v", tt.env, got, tt.debug)
		}
	}
}
