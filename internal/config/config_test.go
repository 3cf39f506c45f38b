package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quantsim.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// clearEnv unsets the overrides that could leak in from the environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"QUANTSIM_SYMBOL", "DATA_DIR", "SQLITE_PATH", "ALPACA_BASE_URL",
		"ALPACA_DATA_URL", "LOG_LEVEL", "LOG_FORMAT", "APCA_API_KEY_ID",
		"APCA_API_SECRET_KEY", "QUANTSIM_HTTP_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFull(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
symbol: "ETH/USD"
timezone: "America/New_York"
storage:
  data_dir: "/tmp/quantsim/data"
  sqlite_path: "/tmp/quantsim/runs.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
  data_url: "https://data.alpaca.markets"
  feed: "sip"
feed:
  history_interval: "minute"
  history_span: "week"
  poll_interval: 30s
  backfill_only: true
  max_retries: 5
  retry_delay: 2s
  record: true
trading:
  allowance: 250
  min_samples: 30
  cooldown: 0s
  emergency_threshold: 0.85
  reset_cooldown_on_trade: true
  mirror_engine: "Baseline"
  broker: "alpaca"
  max_mirror_notional: 50
engines:
  - kind: derivative
    name: fast
    order: 2
    buy_threshold: 0.05
    sell_threshold: -0.01
    cooldown: 5m
  - kind: time_window
    buy_window: "17:00-17:30"
logging:
  level: "debug"
  format: "json"
  file: "/tmp/quantsim/quantsim.log"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Symbol != "ETH/USD" || !cfg.IsCrypto() {
		t.Errorf("Symbol = %q, want %q (crypto)", cfg.Symbol, "ETH/USD")
	}
	if cfg.Storage.SQLitePath != "/tmp/quantsim/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/quantsim/runs.db")
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}

	// -- Feed --
	if cfg.Feed.HistoryInterval != "minute" || cfg.Feed.HistorySpan != "week" {
		t.Errorf("Feed history = %q/%q, want minute/week", cfg.Feed.HistoryInterval, cfg.Feed.HistorySpan)
	}
	if cfg.Feed.PollInterval != 30*time.Second {
		t.Errorf("Feed.PollInterval = %v, want 30s", cfg.Feed.PollInterval)
	}
	if !cfg.Feed.BackfillOnly || !cfg.Feed.Record {
		t.Error("Feed.BackfillOnly and Feed.Record should be true")
	}
	if cfg.Feed.MaxRetries != 5 || cfg.Feed.RetryDelay != 2*time.Second {
		t.Errorf("Feed retries = %d/%v, want 5/2s", cfg.Feed.MaxRetries, cfg.Feed.RetryDelay)
	}

	// -- Trading --
	tr := cfg.Trading
	if tr.Allowance != 250 || tr.MinSamples != 30 || tr.EmergencyThreshold != 0.85 {
		t.Errorf("Trading = %+v, unexpected", tr)
	}
	if tr.Cooldown == nil || *tr.Cooldown != 0 {
		t.Errorf("Trading.Cooldown = %v, want explicit 0", tr.Cooldown)
	}
	if !tr.ResetCooldownOnTrade || tr.MirrorEngine != "Baseline" || tr.Broker != "alpaca" || tr.MaxMirrorNotional != 50 {
		t.Errorf("Trading = %+v, unexpected", tr)
	}

	// -- Engines --
	if len(cfg.Engines) != 2 {
		t.Fatalf("len(Engines) = %d, want 2", len(cfg.Engines))
	}
	e := cfg.Engines[0]
	if e.Kind != "derivative" || e.Name != "fast" || e.Order != 2 {
		t.Errorf("Engines[0] = %+v, unexpected", e)
	}
	if e.BuyThreshold == nil || *e.BuyThreshold != 0.05 {
		t.Errorf("Engines[0].BuyThreshold = %v, want 0.05", e.BuyThreshold)
	}
	if e.SellThreshold == nil || *e.SellThreshold != -0.01 {
		t.Errorf("Engines[0].SellThreshold = %v, want -0.01", e.SellThreshold)
	}
	if e.Cooldown == nil || *e.Cooldown != 5*time.Minute {
		t.Errorf("Engines[0].Cooldown = %v, want 5m", e.Cooldown)
	}
	if cfg.Engines[1].BuyWindow != "17:00-17:30" {
		t.Errorf("Engines[1].BuyWindow = %q, want %q", cfg.Engines[1].BuyWindow, "17:00-17:30")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.File != "/tmp/quantsim/quantsim.log" {
		t.Errorf("Logging = %+v, unexpected", cfg.Logging)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location() returned error: %v", err)
	}
	if loc.String() != "America/New_York" {
		t.Errorf("Location() = %q, want %q", loc.String(), "America/New_York")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "symbol: AAPL\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.IsCrypto() {
		t.Error("IsCrypto() = true for AAPL")
	}
	if cfg.Storage.DataDir != "data" || cfg.Storage.SQLitePath != "data/quantsim.db" {
		t.Errorf("Storage = %+v, unexpected defaults", cfg.Storage)
	}
	if cfg.Feed.HistoryInterval != "5minute" || cfg.Feed.HistorySpan != "day" {
		t.Errorf("Feed history defaults = %q/%q", cfg.Feed.HistoryInterval, cfg.Feed.HistorySpan)
	}
	if cfg.Feed.PollInterval != 10*time.Second || cfg.Feed.MaxRetries != 3 {
		t.Errorf("Feed defaults = %+v", cfg.Feed)
	}
	if cfg.Trading.Cooldown != nil {
		t.Errorf("Trading.Cooldown = %v, want nil when unset", *cfg.Trading.Cooldown)
	}
	if cfg.Trading.Broker != "simulator" {
		t.Errorf("Trading.Broker = %q, want simulator", cfg.Trading.Broker)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging defaults = %+v", cfg.Logging)
	}

	want := DefaultEngines()
	if len(cfg.Engines) != len(want) {
		t.Fatalf("len(Engines) = %d, want %d", len(cfg.Engines), len(want))
	}
	for i := range want {
		if cfg.Engines[i].Kind != want[i].Kind || cfg.Engines[i].Order != want[i].Order {
			t.Errorf("Engines[%d] = %+v, want %+v", i, cfg.Engines[i], want[i])
		}
	}

	if loc, _ := cfg.Location(); loc != time.Local {
		t.Errorf("Location() = %v, want time.Local", loc)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUANTSIM_SYMBOL", "SOL/USD")
	t.Setenv("DATA_DIR", "/override/data")
	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "env-secret")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("QUANTSIM_HTTP_ADDR", ":9090")

	cfg, err := Load(writeConfig(t, `
symbol: AAPL
alpaca:
  api_key: file-key
http:
  addr: ":8080"
`))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Symbol != "SOL/USD" {
		t.Errorf("Symbol = %q, want %q", cfg.Symbol, "SOL/USD")
	}
	if cfg.Storage.DataDir != "/override/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/override/data")
	}
	if cfg.Storage.SQLitePath != "/override/data/quantsim.db" {
		t.Errorf("Storage.SQLitePath = %q, want default under overridden data dir", cfg.Storage.SQLitePath)
	}
	if cfg.Alpaca.APIKey != "env-key" || cfg.Alpaca.APISecret != "env-secret" {
		t.Errorf("Alpaca credentials = %q/%q, want env values", cfg.Alpaca.APIKey, cfg.Alpaca.APISecret)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, ":9090")
	}
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"negative allowance", "trading:\n  allowance: -1\n"},
		{"threshold above one", "trading:\n  emergency_threshold: 1.5\n"},
		{"unknown broker", "trading:\n  broker: robinhood\n"},
		{"missing kind", "engines:\n  - name: x\n"},
		{"duplicate names", "engines:\n  - kind: baseline\n    name: a\n  - kind: baseline\n    name: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() returned nil error, want validation failure")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file returned nil error")
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("QUANTSIM_CONFIG", "")
	if got := PathFromEnv(); got != DefaultPath {
		t.Errorf("PathFromEnv() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("QUANTSIM_CONFIG", "/etc/quantsim.yaml")
	if got := PathFromEnv(); got != "/etc/quantsim.yaml" {
		t.Errorf("PathFromEnv() = %q, want %q", got, "/etc/quantsim.yaml")
	}
}

func TestSampleConfigLoads(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("../../config/quantsim.yaml")
	if err != nil {
		t.Fatalf("Load(sample) returned error: %v", err)
	}
	if cfg.Symbol != "BTC/USD" || len(cfg.Engines) != 6 {
		t.Errorf("sample config: symbol %q with %d engines, want BTC/USD with 6", cfg.Symbol, len(cfg.Engines))
	}
	if cfg.Trading.Cooldown == nil || *cfg.Trading.Cooldown != time.Minute {
		t.Errorf("Trading.Cooldown = %v, want 1m", cfg.Trading.Cooldown)
	}
	if cfg.Feed.PollInterval != 10*time.Second {
		t.Errorf("Feed.PollInterval = %v, want 10s", cfg.Feed.PollInterval)
	}
}
