// Package config loads the mirror's settings: defaults, overlaid by an
// optional YAML file, overlaid by MIRROR_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// REST surface.
	APIBaseURL string        `yaml:"api_base_url"`
	APIKey     string        `yaml:"api_key"`
	APITimeout time.Duration `yaml:"api_timeout"`
	PageLimit  int           `yaml:"page_limit"`

	// Event feed.
	FeedURL        string `yaml:"feed_url"`
	RepeatAddr     string `yaml:"repeat_addr"` // empty disables the repeater
	FeedAuthorized bool   `yaml:"feed_authorized"`

	// Engine tuning.
	SkipExpired          bool          `yaml:"skip_expired"`
	MaxParallelBookLoads int           `yaml:"max_parallel_book_loads"`
	CatchUpLimit         int           `yaml:"catch_up_limit"`
	ExpiryGuard          time.Duration `yaml:"expiry_guard"`
	HeartbeatStaleness   time.Duration `yaml:"heartbeat_staleness"`

	// Trade replay.
	TradeReplayWindow   time.Duration `yaml:"trade_replay_window"`
	TradeReplayInterval time.Duration `yaml:"trade_replay_interval"`

	// Observability.
	MetricsAddr string `yaml:"metrics_addr"`
}

func Default() Config {
	return Config{
		APIBaseURL:           "https://api.ledgerx.com",
		APITimeout:           30 * time.Second,
		PageLimit:            200,
		FeedURL:              "wss://api.ledgerx.com/ws",
		SkipExpired:          true,
		MaxParallelBookLoads: 60,
		CatchUpLimit:         20,
		ExpiryGuard:          15 * time.Second,
		HeartbeatStaleness:   2 * time.Second,
		TradeReplayWindow:    5 * time.Hour,
		TradeReplayInterval:  time.Hour,
		MetricsAddr:          ":9091",
	}
}

// Load builds the effective configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr("MIRROR_API_BASE_URL", &c.APIBaseURL)
	envStr("MIRROR_API_KEY", &c.APIKey)
	envDur("MIRROR_API_TIMEOUT", &c.APITimeout)
	envInt("MIRROR_PAGE_LIMIT", &c.PageLimit)
	envStr("MIRROR_FEED_URL", &c.FeedURL)
	envStr("MIRROR_REPEAT_ADDR", &c.RepeatAddr)
	envBool("MIRROR_FEED_AUTHORIZED", &c.FeedAuthorized)
	envBool("MIRROR_SKIP_EXPIRED", &c.SkipExpired)
	envInt("MIRROR_MAX_PARALLEL_BOOK_LOADS", &c.MaxParallelBookLoads)
	envInt("MIRROR_CATCH_UP_LIMIT", &c.CatchUpLimit)
	envDur("MIRROR_EXPIRY_GUARD", &c.ExpiryGuard)
	envDur("MIRROR_HEARTBEAT_STALENESS", &c.HeartbeatStaleness)
	envDur("MIRROR_TRADE_REPLAY_WINDOW", &c.TradeReplayWindow)
	envDur("MIRROR_TRADE_REPLAY_INTERVAL", &c.TradeReplayInterval)
	envStr("MIRROR_METRICS_ADDR", &c.MetricsAddr)
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url must be set")
	}
	if c.FeedURL == "" {
		return fmt.Errorf("feed_url must be set")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key must be set (MIRROR_API_KEY)")
	}
	if c.MaxParallelBookLoads <= 0 {
		return fmt.Errorf("max_parallel_book_loads must be positive")
	}
	if c.CatchUpLimit < 0 {
		return fmt.Errorf("catch_up_limit must not be negative")
	}
	return nil
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDur(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
