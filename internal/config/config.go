// Package config defines the top-level configuration for the arbitrage
// pipeline and provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBFLOW_* environment variables.
type Config struct {
	Symbols   []string        `toml:"symbols"`
	Feeds     FeedsConfig     `toml:"feeds"`
	Detector  DetectorConfig  `toml:"detector"`
	Gate      GateConfig      `toml:"gate"`
	Simulator SimulatorConfig `toml:"simulator"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Export    ExportConfig    `toml:"export"`
	Server    ServerConfig    `toml:"server"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// FeedsConfig holds per-venue feed parameters plus the connection tuning
// shared by every streaming feed.
type FeedsConfig struct {
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	HandshakeTimeout  duration `toml:"handshake_timeout"`
	BackoffBase       duration `toml:"backoff_base"`
	BackoffCap        duration `toml:"backoff_cap"`

	Hyperliquid HyperliquidFeedConfig `toml:"hyperliquid"`
	Binance     BinanceFeedConfig     `toml:"binance"`
	Redstone    RedstoneFeedConfig    `toml:"redstone"`
}

// HyperliquidFeedConfig holds the Hyperliquid allMids feed parameters.
type HyperliquidFeedConfig struct {
	Enabled bool   `toml:"enabled"`
	Venue   string `toml:"venue"`
	WsURL   string `toml:"ws_url"`
}

// BinanceFeedConfig holds the Binance combined ticker stream parameters.
type BinanceFeedConfig struct {
	Enabled bool   `toml:"enabled"`
	Venue   string `toml:"venue"`
	WsURL   string `toml:"ws_url"`
}

// RedstoneFeedConfig holds the RedStone gateway polling parameters.
type RedstoneFeedConfig struct {
	Enabled      bool     `toml:"enabled"`
	ApiURL       string   `toml:"api_url"`
	PollInterval duration `toml:"poll_interval"`
}

// DetectorConfig holds spread detection parameters.
type DetectorConfig struct {
	// Threshold is the minimum profit fraction, e.g. 0.002 for 0.2%.
	Threshold    float64  `toml:"threshold"`
	MaxQuoteAge  duration `toml:"max_quote_age"`
	AllowMidOnly bool     `toml:"allow_mid_only"`
}

// ThresholdPPM returns the threshold in parts per million. Rounded, not
// truncated: 0.000249 must come out as 249, not 248.
func (d DetectorConfig) ThresholdPPM() int64 {
	return int64(math.Round(d.Threshold * 1_000_000))
}

// GateConfig holds execution admission parameters.
type GateConfig struct {
	// MinProfit is the execution-side profit floor as a fraction.
	MinProfit float64  `toml:"min_profit"`
	MaxAge    duration `toml:"max_age"`
}

// MinProfitPPM returns the floor in parts per million, rounded.
func (g GateConfig) MinProfitPPM() int64 {
	return int64(math.Round(g.MinProfit * 1_000_000))
}

// SimulatorConfig holds mock execution parameters.
type SimulatorConfig struct {
	RejectProbability float64  `toml:"reject_probability"`
	// Slippage is the uniform slippage bound as a fraction, e.g. 0.0005.
	Slippage        float64  `toml:"slippage"`
	ProcessingDelay duration `toml:"processing_delay"`
	Seed            int64    `toml:"seed"`
}

// SlippagePPM returns the slippage bound in parts per million, rounded.
func (s SimulatorConfig) SlippagePPM() int64 {
	return int64(math.Round(s.Slippage * 1_000_000))
}

// StrategyConfig holds arbitrage sizing parameters.
type StrategyConfig struct {
	// MaxNotional caps the quote-currency value of one arbitrage.
	MaxNotional float64 `toml:"max_notional"`
	// MaxUnits caps the per-leg quantity.
	MaxUnits float64 `toml:"max_units"`
}

// ExportConfig holds the export-file replay parameters.
type ExportConfig struct {
	Enabled  bool     `toml:"enabled"`
	Path     string   `toml:"path"`
	Interval duration `toml:"interval"`
}

// ServerConfig holds the read-only status API parameters. Optional: when
// disabled no HTTP listener is started.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// RedisConfig holds Redis connection parameters. Redis is optional: when
// disabled the pipeline runs purely in-process.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters. Optional, like
// Redis; used for the opportunity and order-event audit trail.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "100ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Symbols: []string{"BTC", "ETH", "SOL"},
		Feeds: FeedsConfig{
			HeartbeatInterval: duration{30 * time.Second},
			HandshakeTimeout:  duration{15 * time.Second},
			BackoffBase:       duration{time.Second},
			BackoffCap:        duration{60 * time.Second},
			Hyperliquid: HyperliquidFeedConfig{
				Enabled: true,
				Venue:   "hyperliquid",
				WsURL:   "wss://api.hyperliquid.xyz/ws",
			},
			Binance: BinanceFeedConfig{
				Enabled: true,
				Venue:   "binance",
				WsURL:   "wss://stream.binance.com:9443/ws",
			},
			Redstone: RedstoneFeedConfig{
				Enabled:      false,
				ApiURL:       "https://oracle-gateway-2.a.redstone.finance/v2/data-packages/latest/redstone-primary-prod/show-metadata",
				PollInterval: duration{11 * time.Second},
			},
		},
		Detector: DetectorConfig{
			Threshold:    0.002,
			MaxQuoteAge:  duration{10 * time.Second},
			AllowMidOnly: true,
		},
		Gate: GateConfig{
			MinProfit: 0.002,
			MaxAge:    duration{5 * time.Second},
		},
		Simulator: SimulatorConfig{
			RejectProbability: 0.05,
			Slippage:          0.0005,
			ProcessingDelay:   duration{100 * time.Millisecond},
		},
		Strategy: StrategyConfig{
			MaxNotional: 1000.0,
			MaxUnits:    100.0,
		},
		Export: ExportConfig{
			Enabled:  false,
			Path:     "arbitrage_export_latest.json",
			Interval: duration{time.Second},
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8080,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "arbflow",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Notify: NotifyConfig{
			Events: []string{"arb_detected", "order_filled", "order_rejected", "feed_disconnected"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"detect":  true,
	"replay":  true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Normalize once so every later check, and every runtime switch on Mode or
	// LogLevel, sees the canonical lowercase form.
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: detect, replay, monitor, full)", c.Mode))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(c.Symbols) == 0 {
		errs = append(errs, "symbols must not be empty")
	}
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "symbols must not contain blank entries")
			break
		}
	}

	// Feeds: at least one quote source in the modes that consume quotes.
	needsFeeds := c.Mode == "detect" || c.Mode == "monitor" || c.Mode == "full"
	if needsFeeds {
		if !c.Feeds.Hyperliquid.Enabled && !c.Feeds.Binance.Enabled && !c.Feeds.Redstone.Enabled {
			errs = append(errs, "feeds: at least one feed must be enabled for mode "+c.Mode)
		}
	}
	if c.Feeds.Hyperliquid.Enabled {
		if c.Feeds.Hyperliquid.WsURL == "" {
			errs = append(errs, "feeds.hyperliquid: ws_url must not be empty")
		}
		if c.Feeds.Hyperliquid.Venue == "" {
			errs = append(errs, "feeds.hyperliquid: venue must not be empty")
		}
	}
	if c.Feeds.Binance.Enabled {
		if c.Feeds.Binance.WsURL == "" {
			errs = append(errs, "feeds.binance: ws_url must not be empty")
		}
		if c.Feeds.Binance.Venue == "" {
			errs = append(errs, "feeds.binance: venue must not be empty")
		}
	}
	if c.Feeds.Redstone.Enabled {
		if c.Feeds.Redstone.ApiURL == "" {
			errs = append(errs, "feeds.redstone: api_url must not be empty")
		}
		if c.Feeds.Redstone.PollInterval.Duration <= 0 {
			errs = append(errs, "feeds.redstone: poll_interval must be > 0")
		}
	}
	if c.Feeds.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, "feeds: heartbeat_interval must be > 0")
	}
	if c.Feeds.BackoffBase.Duration <= 0 || c.Feeds.BackoffCap.Duration < c.Feeds.BackoffBase.Duration {
		errs = append(errs, "feeds: backoff_base must be > 0 and backoff_cap >= backoff_base")
	}

	// Detector
	if c.Detector.Threshold <= 0 {
		errs = append(errs, "detector: threshold must be > 0")
	}
	if c.Detector.MaxQuoteAge.Duration < 0 {
		errs = append(errs, "detector: max_quote_age must be >= 0")
	}

	// Gate
	if c.Gate.MinProfit < 0 {
		errs = append(errs, "gate: min_profit must be >= 0")
	}
	if c.Gate.MaxAge.Duration <= 0 {
		errs = append(errs, "gate: max_age must be > 0")
	}

	// Simulator
	if c.Simulator.RejectProbability < 0 || c.Simulator.RejectProbability > 1 {
		errs = append(errs, fmt.Sprintf("simulator: reject_probability must be in [0,1], got %g", c.Simulator.RejectProbability))
	}
	if c.Simulator.Slippage < 0 || c.Simulator.Slippage >= 1 {
		errs = append(errs, fmt.Sprintf("simulator: slippage must be in [0,1), got %g", c.Simulator.Slippage))
	}

	// Strategy
	if c.Strategy.MaxNotional <= 0 {
		errs = append(errs, "strategy: max_notional must be > 0")
	}
	if c.Strategy.MaxUnits <= 0 {
		errs = append(errs, "strategy: max_units must be > 0")
	}

	// Export: required in replay mode.
	if c.Mode == "replay" && !c.Export.Enabled {
		errs = append(errs, "export: must be enabled for replay mode")
	}
	if c.Export.Enabled && c.Export.Path == "" {
		errs = append(errs, "export: path must not be empty when enabled")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
