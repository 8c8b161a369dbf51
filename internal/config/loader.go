package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBFLOW_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBFLOW_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Symbols ──
	setStringSlice(&cfg.Symbols, "ARBFLOW_SYMBOLS")

	// ── Feeds ──
	setDuration(&cfg.Feeds.HeartbeatInterval, "ARBFLOW_FEEDS_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Feeds.HandshakeTimeout, "ARBFLOW_FEEDS_HANDSHAKE_TIMEOUT")
	setDuration(&cfg.Feeds.BackoffBase, "ARBFLOW_FEEDS_BACKOFF_BASE")
	setDuration(&cfg.Feeds.BackoffCap, "ARBFLOW_FEEDS_BACKOFF_CAP")
	setBool(&cfg.Feeds.Hyperliquid.Enabled, "ARBFLOW_FEEDS_HYPERLIQUID_ENABLED")
	setStr(&cfg.Feeds.Hyperliquid.Venue, "ARBFLOW_FEEDS_HYPERLIQUID_VENUE")
	setStr(&cfg.Feeds.Hyperliquid.WsURL, "ARBFLOW_FEEDS_HYPERLIQUID_WS_URL")
	setBool(&cfg.Feeds.Binance.Enabled, "ARBFLOW_FEEDS_BINANCE_ENABLED")
	setStr(&cfg.Feeds.Binance.Venue, "ARBFLOW_FEEDS_BINANCE_VENUE")
	setStr(&cfg.Feeds.Binance.WsURL, "ARBFLOW_FEEDS_BINANCE_WS_URL")
	setBool(&cfg.Feeds.Redstone.Enabled, "ARBFLOW_FEEDS_REDSTONE_ENABLED")
	setStr(&cfg.Feeds.Redstone.ApiURL, "ARBFLOW_FEEDS_REDSTONE_API_URL")
	setDuration(&cfg.Feeds.Redstone.PollInterval, "ARBFLOW_FEEDS_REDSTONE_POLL_INTERVAL")

	// ── Detector ──
	setFloat64(&cfg.Detector.Threshold, "ARBFLOW_DETECTOR_THRESHOLD")
	setDuration(&cfg.Detector.MaxQuoteAge, "ARBFLOW_DETECTOR_MAX_QUOTE_AGE")
	setBool(&cfg.Detector.AllowMidOnly, "ARBFLOW_DETECTOR_ALLOW_MID_ONLY")

	// ── Gate ──
	setFloat64(&cfg.Gate.MinProfit, "ARBFLOW_GATE_MIN_PROFIT")
	setDuration(&cfg.Gate.MaxAge, "ARBFLOW_GATE_MAX_AGE")

	// ── Simulator ──
	setFloat64(&cfg.Simulator.RejectProbability, "ARBFLOW_SIMULATOR_REJECT_PROBABILITY")
	setFloat64(&cfg.Simulator.Slippage, "ARBFLOW_SIMULATOR_SLIPPAGE")
	setDuration(&cfg.Simulator.ProcessingDelay, "ARBFLOW_SIMULATOR_PROCESSING_DELAY")
	setInt64(&cfg.Simulator.Seed, "ARBFLOW_SIMULATOR_SEED")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.MaxNotional, "ARBFLOW_STRATEGY_MAX_NOTIONAL")
	setFloat64(&cfg.Strategy.MaxUnits, "ARBFLOW_STRATEGY_MAX_UNITS")

	// ── Export ──
	setBool(&cfg.Export.Enabled, "ARBFLOW_EXPORT_ENABLED")
	setStr(&cfg.Export.Path, "ARBFLOW_EXPORT_PATH")
	setDuration(&cfg.Export.Interval, "ARBFLOW_EXPORT_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBFLOW_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBFLOW_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ARBFLOW_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBFLOW_SERVER_CORS_ORIGINS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBFLOW_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBFLOW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBFLOW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBFLOW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBFLOW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBFLOW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBFLOW_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ARBFLOW_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBFLOW_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBFLOW_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBFLOW_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBFLOW_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBFLOW_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBFLOW_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBFLOW_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBFLOW_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBFLOW_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBFLOW_POSTGRES_RUN_MIGRATIONS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBFLOW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBFLOW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBFLOW_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBFLOW_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBFLOW_MODE")
	setStr(&cfg.LogLevel, "ARBFLOW_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
