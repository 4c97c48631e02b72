package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
storage:
  sqlite_path: "/tmp/ast/trading.db"
  data_dir: "/tmp/ast/data"
server:
  host: "0.0.0.0"
  port: 8080
broker:
  provider: "alpaca"
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
market:
  timezone: "America/New_York"
  open: "09:30"
  close: "16:00"
logging:
  level: "debug"
trading:
  max_position_count: 5
  max_position_ratio: 0.25
  stop_loss_ratio: -0.02
  take_profit_ratio: 0.05
  order_timeout_minutes: 5
  reconcile_interval_secs: 15
`)

	os.Unsetenv("BROKER_API_KEY")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Broker.Provider != "alpaca" {
		t.Errorf("Broker.Provider = %q, want alpaca", cfg.Broker.Provider)
	}
	if cfg.Broker.APIKey != "test-key" {
		t.Errorf("Broker.APIKey = %q, want test-key", cfg.Broker.APIKey)
	}
	if cfg.Market.Timezone != "America/New_York" {
		t.Errorf("Market.Timezone = %q", cfg.Market.Timezone)
	}
	if cfg.Trading.MaxPositionCount != 5 {
		t.Errorf("MaxPositionCount = %d, want 5", cfg.Trading.MaxPositionCount)
	}
	if cfg.Trading.OrderTimeoutMinutes != 5 {
		t.Errorf("OrderTimeoutMinutes = %d, want 5", cfg.Trading.OrderTimeoutMinutes)
	}
	if cfg.Trading.ReconcileIntervalSecs != 15 {
		t.Errorf("ReconcileIntervalSecs = %d, want 15", cfg.Trading.ReconcileIntervalSecs)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  sqlite_path: "/tmp/ast/trading.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Broker.Provider != "simulator" {
		t.Errorf("default provider = %q, want simulator", cfg.Broker.Provider)
	}
	if cfg.Market.Open != "09:00" || cfg.Market.Close != "15:30" {
		t.Errorf("default market hours = %s-%s", cfg.Market.Open, cfg.Market.Close)
	}
	if cfg.Trading.MaxPositionCount != 10 {
		t.Errorf("default MaxPositionCount = %d, want 10", cfg.Trading.MaxPositionCount)
	}
	if cfg.Trading.StopLossRatio != -0.01 {
		t.Errorf("default StopLossRatio = %v, want -0.01", cfg.Trading.StopLossRatio)
	}
	if cfg.Trading.CheckIntervalSecs != 10 || cfg.Trading.ReconcileIntervalSecs != 10 {
		t.Error("default intervals should be 10s")
	}
	if cfg.Trading.RetryAttempts != 3 || cfg.Trading.RetryDelayMs != 500 {
		t.Error("default retry parameters not applied")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
broker:
  provider: "alpaca"
  api_key: "from-file"
`)

	t.Setenv("BROKER_API_KEY", "from-env")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broker.APIKey != "from-env" {
		t.Errorf("APIKey = %q, env override should win", cfg.Broker.APIKey)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown provider", "broker:\n  provider: \"etrade\"\n"},
		{"positive stop loss", "trading:\n  stop_loss_ratio: 0.05\n"},
		{"ratio over one", "trading:\n  max_position_ratio: 1.5\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeConfig(t, c.content)
			if _, err := Load(path); err == nil {
				t.Error("Load should reject invalid config")
			}
		})
	}
}
