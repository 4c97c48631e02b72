package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the trading service.
type Config struct {
	Storage Storage       `yaml:"storage"`
	Server  Server        `yaml:"server"`
	Broker  Broker        `yaml:"broker"`
	Market  Market        `yaml:"market"`
	Logging Logging       `yaml:"logging"`
	Notify  Notify        `yaml:"notify"`
	Trading TradingConfig `yaml:"trading"`
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	DataDir    string `yaml:"data_dir"` // parquet fill archive
}

// Server holds the status API listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Broker holds credentials and endpoints for the brokerage API.
type Broker struct {
	Provider  string `yaml:"provider"` // "alpaca" or "simulator"
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Market describes the trading session the engine operates in.
type Market struct {
	Timezone string `yaml:"timezone"`
	Open     string `yaml:"open"`  // "HH:MM"
	Close    string `yaml:"close"` // "HH:MM"
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Notify configures the outbound notification channel.
type Notify struct {
	WebhookURL string `yaml:"webhook_url"`
	Enabled    bool   `yaml:"enabled"`
}

// TradingConfig defines risk, sizing, and scheduling parameters. All retry
// and interval constants used by the order tracker live here so call sites
// never carry their own.
type TradingConfig struct {
	MaxPositionCount int     `yaml:"max_position_count"`
	MaxPositionRatio float64 `yaml:"max_position_ratio"`
	MinPositionRatio float64 `yaml:"min_position_ratio"`
	StopLossRatio    float64 `yaml:"stop_loss_ratio"`    // negative, e.g. -0.01
	TakeProfitRatio  float64 `yaml:"take_profit_ratio"`  // positive, e.g. 0.03
	MaxHoldingDays   int     `yaml:"max_holding_days"`   // time-based exit
	PartialExitDays  int     `yaml:"partial_exit_days"`  // partial exit trigger
	PartialExitRatio float64 `yaml:"partial_exit_ratio"` // fraction sold on partial exit

	CheckIntervalSecs     int `yaml:"check_interval_secs"`     // trading cadence
	ReconcileIntervalSecs int `yaml:"reconcile_interval_secs"` // order polling
	OrderTimeoutMinutes   int `yaml:"order_timeout_minutes"`   // unfilled order expiry
	OrderRetentionSecs    int `yaml:"order_retention_secs"`    // terminal order observability window
	ExecutionWindowHours  int `yaml:"execution_window_hours"`  // broker history lookback

	RetryAttempts   int  `yaml:"retry_attempts"`
	RetryDelayMs    int  `yaml:"retry_delay_ms"`
	RateLimitPerMin int  `yaml:"rate_limit_per_min"`
	TestMode        bool `yaml:"test_mode"` // bypass market-hours expiry anchoring
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		cfg.Broker.APIKey = v
	}
	if v := os.Getenv("BROKER_API_SECRET"); v != "" {
		cfg.Broker.APISecret = v
	}
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Broker.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Broker.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Broker.Provider == "" {
		cfg.Broker.Provider = "simulator"
	}
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = "Asia/Seoul"
	}
	if cfg.Market.Open == "" {
		cfg.Market.Open = "09:00"
	}
	if cfg.Market.Close == "" {
		cfg.Market.Close = "15:30"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	t := &cfg.Trading
	if t.MaxPositionCount == 0 {
		t.MaxPositionCount = 10
	}
	if t.MaxPositionRatio == 0 {
		t.MaxPositionRatio = 0.2
	}
	if t.MinPositionRatio == 0 {
		t.MinPositionRatio = 0.1
	}
	if t.StopLossRatio == 0 {
		t.StopLossRatio = -0.01
	}
	if t.TakeProfitRatio == 0 {
		t.TakeProfitRatio = 0.03
	}
	if t.MaxHoldingDays == 0 {
		t.MaxHoldingDays = 10
	}
	if t.PartialExitDays == 0 {
		t.PartialExitDays = 7
	}
	if t.PartialExitRatio == 0 {
		t.PartialExitRatio = 0.5
	}
	if t.CheckIntervalSecs == 0 {
		t.CheckIntervalSecs = 10
	}
	if t.ReconcileIntervalSecs == 0 {
		t.ReconcileIntervalSecs = 10
	}
	if t.OrderTimeoutMinutes == 0 {
		t.OrderTimeoutMinutes = 3
	}
	if t.OrderRetentionSecs == 0 {
		t.OrderRetentionSecs = 60
	}
	if t.ExecutionWindowHours == 0 {
		t.ExecutionWindowHours = 24
	}
	if t.RetryAttempts == 0 {
		t.RetryAttempts = 3
	}
	if t.RetryDelayMs == 0 {
		t.RetryDelayMs = 500
	}
	if t.RateLimitPerMin == 0 {
		t.RateLimitPerMin = 120
	}
}

func validate(cfg *Config) error {
	switch cfg.Broker.Provider {
	case "alpaca", "simulator":
	default:
		return fmt.Errorf("unknown broker provider %q", cfg.Broker.Provider)
	}
	t := cfg.Trading
	if t.MaxPositionRatio <= 0 || t.MaxPositionRatio > 1 {
		return fmt.Errorf("max_position_ratio %v out of (0, 1]", t.MaxPositionRatio)
	}
	if t.StopLossRatio >= 0 {
		return fmt.Errorf("stop_loss_ratio %v must be negative", t.StopLossRatio)
	}
	if t.TakeProfitRatio <= 0 {
		return fmt.Errorf("take_profit_ratio %v must be positive", t.TakeProfitRatio)
	}
	if t.PartialExitRatio <= 0 || t.PartialExitRatio >= 1 {
		return fmt.Errorf("partial_exit_ratio %v out of (0, 1)", t.PartialExitRatio)
	}
	return nil
}
