package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML file at path, merges it over the built-in defaults and
// applies SLOTD_* environment overrides. The result is not validated; call
// Config.Validate afterwards.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present, silently ignoring a missing file.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites config fields from SLOTD_* environment
// variables when set, so operators can inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Store.Backend, "SLOTD_STORE_BACKEND")
	setStr(&cfg.Store.DSN, "SLOTD_STORE_DSN")
	setStr(&cfg.Store.Host, "SLOTD_STORE_HOST")
	setInt(&cfg.Store.Port, "SLOTD_STORE_PORT")
	setStr(&cfg.Store.Database, "SLOTD_STORE_DATABASE")
	setStr(&cfg.Store.User, "SLOTD_STORE_USER")
	setStr(&cfg.Store.Password, "SLOTD_STORE_PASSWORD")
	setStr(&cfg.Store.SSLMode, "SLOTD_STORE_SSL_MODE")
	setInt(&cfg.Store.PoolMaxConns, "SLOTD_STORE_POOL_MAX_CONNS")
	setInt(&cfg.Store.PoolMinConns, "SLOTD_STORE_POOL_MIN_CONNS")
	setBool(&cfg.Store.RunMigrations, "SLOTD_STORE_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "SLOTD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SLOTD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SLOTD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SLOTD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SLOTD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SLOTD_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "SLOTD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SLOTD_S3_REGION")
	setStr(&cfg.S3.Bucket, "SLOTD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SLOTD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SLOTD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SLOTD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SLOTD_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Escrow.Provider, "SLOTD_ESCROW_PROVIDER")
	setStr(&cfg.Escrow.BaseURL, "SLOTD_ESCROW_BASE_URL")
	setStr(&cfg.Escrow.APIToken, "SLOTD_ESCROW_API_TOKEN")

	setDuration(&cfg.Auction.Window, "SLOTD_AUCTION_WINDOW")
	setFloat64(&cfg.Auction.FeeRate, "SLOTD_AUCTION_FEE_RATE")
	setDuration(&cfg.Auction.SweepInterval, "SLOTD_AUCTION_SWEEP_INTERVAL")
	setInt(&cfg.Auction.BidRateLimit, "SLOTD_AUCTION_BID_RATE_LIMIT")
	setDuration(&cfg.Auction.BidRateWindow, "SLOTD_AUCTION_BID_RATE_WINDOW")

	setBool(&cfg.Archive.Enabled, "SLOTD_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "SLOTD_ARCHIVE_RETENTION_DAYS")

	setInt(&cfg.Server.Port, "SLOTD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SLOTD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SLOTD_SERVER_API_KEY")

	setStr(&cfg.Notify.TelegramToken, "SLOTD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SLOTD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SLOTD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SLOTD_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "SLOTD_MODE")
	setStr(&cfg.LogLevel, "SLOTD_LOG_LEVEL")
}

// Typed env-var helpers. Each mutates the target only when the variable is
// present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
