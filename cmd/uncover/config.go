package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

// Config is the CLI configuration. Values are layered: defaults, the JSONC
// config file, the environment, then flags.
type Config struct {
	Addr      string `json:"addr"`
	SourceURL string `json:"source_url"`
	RedisURL  string `json:"redis_url,omitempty"`
	LogLevel  string `json:"log_level"`
	Pretty    bool   `json:"pretty"`

	// Page server
	MaxTotal int      `json:"max_total"`
	Latency  Duration `json:"latency"`

	// Model and fetching
	PageSize         int      `json:"page_size"`
	Lanes            int      `json:"lanes"`
	DelayWhenPending Duration `json:"delay_when_pending"`

	// Source stack
	CacheTTL   Duration `json:"cache_ttl"`
	Rate       float64  `json:"rate"`
	Burst      int      `json:"burst"`
	MaxRetries int      `json:"max_retries"`
}

// Duration is a time.Duration written as a string ("250ms") in JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts Go duration strings.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:             ":8080",
		SourceURL:        "http://localhost:8080/search",
		LogLevel:         "info",
		MaxTotal:         1000,
		PageSize:         10,
		Lanes:            2,
		DelayWhenPending: Duration{5 * time.Second},
		CacheTTL:         Duration{5 * time.Minute},
		Rate:             10,
		Burst:            5,
		MaxRetries:       3,
	}
}

// loadConfig reads path over the defaults. An empty path keeps the defaults.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := parseConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte, cfg *Config) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}
	if err := json.Unmarshal(standardized, cfg); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// applyEnv overrides cfg from the environment.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("UNCOVER_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("UNCOVER_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := getenv("UNCOVER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks values no constructor would catch with a useful message.
func (c Config) Validate() error {
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be >= 1 (got %d)", c.PageSize)
	}
	if c.Lanes < 1 {
		return fmt.Errorf("lanes must be >= 1 (got %d)", c.Lanes)
	}
	if c.MaxTotal < 1 {
		return fmt.Errorf("max_total must be >= 1 (got %d)", c.MaxTotal)
	}
	if c.DelayWhenPending.Duration < 0 {
		return fmt.Errorf("delay_when_pending must be >= 0 (got %s)", c.DelayWhenPending)
	}
	if c.CacheTTL.Duration < 0 {
		return fmt.Errorf("cache_ttl must be >= 0 (got %s)", c.CacheTTL)
	}
	return nil
}
