package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.Store.Backend = "sqlite"
	cfg.Auction.FeeRate = 1.5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"replay", "sqlite", "fee_rate"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SLOTD_MODE", "sweep")
	t.Setenv("SLOTD_STORE_PASSWORD", "hunter2")
	t.Setenv("SLOTD_AUCTION_WINDOW", "12h")
	t.Setenv("SLOTD_AUCTION_BID_RATE_LIMIT", "99")
	t.Setenv("SLOTD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Mode != "sweep" {
		t.Errorf("mode = %q, want sweep", cfg.Mode)
	}
	if cfg.Store.Password != "hunter2" {
		t.Errorf("password not overridden")
	}
	if cfg.Auction.Window.Duration != 12*time.Hour {
		t.Errorf("window = %v, want 12h", cfg.Auction.Window.Duration)
	}
	if cfg.Auction.BidRateLimit != 99 {
		t.Errorf("bid rate limit = %d, want 99", cfg.Auction.BidRateLimit)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Password = "secret"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	if red.Store.Password != "***" || red.Notify.TelegramToken != "***" {
		t.Errorf("secrets not redacted: %+v", red)
	}
	if cfg.Store.Password != "secret" {
		t.Errorf("original mutated")
	}
	if red.Server.APIKey != "" {
		t.Errorf("empty secret should stay empty, got %q", red.Server.APIKey)
	}
}
