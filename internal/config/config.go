// Package config loads the simulator configuration from YAML, an optional
// .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for a simulation.
type Config struct {
	// Symbol is the single traded asset, e.g. "BTC/USD" or "AAPL".
	Symbol string `yaml:"symbol"`
	// Timezone is the IANA zone used for time-of-day windows. Empty means
	// the local zone.
	Timezone string `yaml:"timezone"`

	Storage Storage        `yaml:"storage"`
	Alpaca  Alpaca         `yaml:"alpaca"`
	Feed    FeedConfig     `yaml:"feed"`
	Trading TradingConfig  `yaml:"trading"`
	Engines []EngineConfig `yaml:"engines"`
	Logging Logging        `yaml:"logging"`
	HTTP    HTTPConfig     `yaml:"http"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	// Feed is the stock data feed ("iex" or "sip"). Ignored for crypto.
	Feed string `yaml:"feed"`
}

// HTTPConfig configures the optional status API.
type HTTPConfig struct {
	// Addr is the listen address, e.g. ":8080". Empty disables the API.
	Addr string `yaml:"addr"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File, when set, also writes logs to a rotating file.
	File string `yaml:"file"`
}

// FeedConfig controls how price samples are obtained.
type FeedConfig struct {
	HistoryInterval string        `yaml:"history_interval"`
	HistorySpan     string        `yaml:"history_span"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	// BackfillOnly ends the simulation after the history backfill.
	BackfillOnly bool          `yaml:"backfill_only"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	// Record archives every sample fed to the engines.
	Record bool `yaml:"record"`
}

// TradingConfig holds the engine defaults shared by every engine.
type TradingConfig struct {
	Allowance            float64        `yaml:"allowance"`
	MinSamples           int            `yaml:"min_samples"`
	Cooldown             *time.Duration `yaml:"cooldown"`
	EmergencyThreshold   float64        `yaml:"emergency_threshold"`
	ResetCooldownOnTrade bool           `yaml:"reset_cooldown_on_trade"`
	// MirrorEngine names the engine whose trades are forwarded to Broker.
	// Empty disables mirroring.
	MirrorEngine string `yaml:"mirror_engine"`
	// Broker is "simulator" or "alpaca".
	Broker string `yaml:"broker"`
	// MaxMirrorNotional caps a single mirrored order in dollars. Zero means
	// no cap.
	MaxMirrorNotional float64 `yaml:"max_mirror_notional"`
}

// EngineConfig describes one engine instance. Zero-valued numeric fields
// fall back to the trading defaults.
type EngineConfig struct {
	Kind               string         `yaml:"kind"`
	Name               string         `yaml:"name"`
	Order              int            `yaml:"order"`
	Allowance          float64        `yaml:"allowance"`
	MinSamples         int            `yaml:"min_samples"`
	Cooldown           *time.Duration `yaml:"cooldown"`
	EmergencyThreshold float64        `yaml:"emergency_threshold"`
	BuyThreshold       *float64       `yaml:"buy_threshold"`
	SellThreshold      *float64       `yaml:"sell_threshold"`
	BuyWindow          string         `yaml:"buy_window"`
	SellWindow         string         `yaml:"sell_window"`
}

// DefaultEngines is the engine set used when the config names none: the
// time window, the baseline, and derivative thresholds of orders 1 to 4.
func DefaultEngines() []EngineConfig {
	return []EngineConfig{
		{Kind: "time_window"},
		{Kind: "baseline"},
		{Kind: "derivative", Order: 1},
		{Kind: "derivative", Order: 2},
		{Kind: "derivative", Order: 3},
		{Kind: "derivative", Order: 4},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// DefaultPath is the config file used when QUANTSIM_CONFIG is unset.
const DefaultPath = "config/quantsim.yaml"

// PathFromEnv returns the config path from QUANTSIM_CONFIG or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("QUANTSIM_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides (after loading a
// .env file from the working directory when present), fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUANTSIM_SYMBOL"); v != "" {
		cfg.Symbol = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("QUANTSIM_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Standard Alpaca env vars, the names the SDK itself reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Symbol == "" {
		cfg.Symbol = "BTC/USD"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = cfg.Storage.DataDir + "/quantsim.db"
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}
	if cfg.Feed.HistoryInterval == "" {
		cfg.Feed.HistoryInterval = "5minute"
	}
	if cfg.Feed.HistorySpan == "" {
		cfg.Feed.HistorySpan = "day"
	}
	if cfg.Feed.PollInterval <= 0 {
		cfg.Feed.PollInterval = 10 * time.Second
	}
	if cfg.Feed.MaxRetries <= 0 {
		cfg.Feed.MaxRetries = 3
	}
	if cfg.Feed.RetryDelay <= 0 {
		cfg.Feed.RetryDelay = time.Second
	}
	if cfg.Trading.Broker == "" {
		cfg.Trading.Broker = "simulator"
	}
	if len(cfg.Engines) == 0 {
		cfg.Engines = DefaultEngines()
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	t := c.Trading
	if t.Allowance < 0 {
		return fmt.Errorf("trading.allowance must not be negative, got %v", t.Allowance)
	}
	if t.EmergencyThreshold < 0 || t.EmergencyThreshold > 1 {
		return fmt.Errorf("trading.emergency_threshold must be in [0, 1], got %v", t.EmergencyThreshold)
	}
	if t.MaxMirrorNotional < 0 {
		return fmt.Errorf("trading.max_mirror_notional must not be negative, got %v", t.MaxMirrorNotional)
	}
	switch t.Broker {
	case "simulator", "alpaca":
	default:
		return fmt.Errorf("trading.broker must be simulator or alpaca, got %q", t.Broker)
	}

	names := make(map[string]bool)
	for i, ec := range c.Engines {
		if ec.Kind == "" {
			return fmt.Errorf("engines[%d]: kind is required", i)
		}
		if ec.Allowance < 0 {
			return fmt.Errorf("engines[%d]: allowance must not be negative", i)
		}
		if ec.EmergencyThreshold < 0 || ec.EmergencyThreshold > 1 {
			return fmt.Errorf("engines[%d]: emergency_threshold must be in [0, 1]", i)
		}
		if ec.Name != "" {
			if names[ec.Name] {
				return fmt.Errorf("engines[%d]: duplicate name %q", i, ec.Name)
			}
			names[ec.Name] = true
		}
	}
	return nil
}

// Location resolves Timezone. Empty or "Local" is time.Local.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// IsCrypto reports whether the configured symbol is a crypto pair.
func (c *Config) IsCrypto() bool {
	return strings.Contains(c.Symbol, "/")
}
