package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Fees      FeesConfig      `mapstructure:"fees"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the alert evaluation cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// FeesConfig is the on-chain route fee schedule. Values are strings so they
// reach decimal arithmetic without a float round trip.
type FeesConfig struct {
	TradeFeeEU       string `mapstructure:"trade_fee_eu"`
	TradeFeeBR       string `mapstructure:"trade_fee_br"`
	NetworkFeeFixed  string `mapstructure:"network_fee_fixed"`
	WithdrawFeeFixed string `mapstructure:"withdraw_fee_fixed"`
}

// ProvidersConfig lists the off-chain quote sources.
type ProvidersConfig struct {
	Wise WiseConfig `mapstructure:"wise"`
}

// WiseConfig configures the Wise comparison API client.
type WiseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertingConfig defines evaluation fan-out and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Workers  int            `mapstructure:"workers"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults. A .env file
// in the working directory, when present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BRIDGEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bridgewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x62726467))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("fees.trade_fee_eu", "0.001")
	v.SetDefault("fees.trade_fee_br", "0.001")
	v.SetDefault("fees.network_fee_fixed", "1.0")
	v.SetDefault("fees.withdraw_fee_fixed", "3.5")

	v.SetDefault("providers.wise.enabled", true)
	v.SetDefault("providers.wise.base_url", "https://api.wise.com")
	v.SetDefault("providers.wise.request_timeout", "10s")
	v.SetDefault("providers.wise.rate_limit", 2.0)
	v.SetDefault("providers.wise.rate_limit_burst", 1)
	v.SetDefault("providers.wise.user_agent", "bridgewatch/1.0")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.workers", 8)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.Workers <= 0 {
		return fmt.Errorf("alerting.workers must be greater than zero")
	}
	if c.Providers.Wise.Enabled && c.Providers.Wise.RateLimit <= 0 {
		return fmt.Errorf("providers.wise.rate_limit must be greater than zero")
	}
	if _, err := c.Fees.Domain(); err != nil {
		return err
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// Domain parses the fee schedule into its immutable domain form.
func (f FeesConfig) Domain() (domain.FeeConfig, error) {
	parse := func(key, raw string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return decimal.Zero, fmt.Errorf("fees.%s: %w", key, err)
		}
		return d, nil
	}

	var (
		fees domain.FeeConfig
		err  error
	)
	if fees.TradeFeeEU, err = parse("trade_fee_eu", f.TradeFeeEU); err != nil {
		return domain.FeeConfig{}, err
	}
	if fees.TradeFeeBR, err = parse("trade_fee_br", f.TradeFeeBR); err != nil {
		return domain.FeeConfig{}, err
	}
	if fees.NetworkFeeFixed, err = parse("network_fee_fixed", f.NetworkFeeFixed); err != nil {
		return domain.FeeConfig{}, err
	}
	if fees.WithdrawFeeFixed, err = parse("withdraw_fee_fixed", f.WithdrawFeeFixed); err != nil {
		return domain.FeeConfig{}, err
	}
	if err := fees.Validate(); err != nil {
		return domain.FeeConfig{}, fmt.Errorf("fees: %w", err)
	}
	return fees, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
