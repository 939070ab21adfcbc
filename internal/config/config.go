package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"econ-snapshot/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig              `mapstructure:"app"`
	Logging   logging.Config         `mapstructure:"logging"`
	Database  DatabaseConfig         `mapstructure:"database"`
	Scheduler SchedulerConfig        `mapstructure:"scheduler"`
	Sources   SourcesConfig          `mapstructure:"sources"`
	Cache     CacheConfig            `mapstructure:"cache"`
	Snapshot  SnapshotConfig         `mapstructure:"snapshot"`
	Fields    map[string]FieldConfig `mapstructure:"fields"`
	History   HistoryConfig          `mapstructure:"history"`
	Alerting  AlertingConfig         `mapstructure:"alerting"`
	Metrics   MetricsConfig          `mapstructure:"metrics"`
	Export    ExportConfig           `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates the optional PostgreSQL snapshot archive.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the refresh cadence of `run`.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	ClosedInterval  time.Duration `mapstructure:"closed_interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SourceConfig describes one upstream provider. An empty APIKey on a provider
// that needs one means the provider is simply absent.
type SourceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	DailyLimit     int           `mapstructure:"daily_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// WorldBankConfig adds the country the indicators are requested for.
type WorldBankConfig struct {
	SourceConfig `mapstructure:",squash"`
	Country      string `mapstructure:"country"`
}

// SourcesConfig groups all upstream providers.
type SourcesConfig struct {
	Yahoo        SourceConfig    `mapstructure:"yahoo"`
	WorldBank    WorldBankConfig `mapstructure:"worldbank"`
	AlphaVantage SourceConfig    `mapstructure:"alphavantage"`
	UserAgent    string          `mapstructure:"user_agent"`
}

// CacheConfig selects the result cache backend and per-group TTLs.
type CacheConfig struct {
	Backend string         `mapstructure:"backend"`
	TTL     GroupTTLConfig `mapstructure:"ttl"`
	Redis   RedisConfig    `mapstructure:"redis"`
}

// GroupTTLConfig holds one TTL per data category.
type GroupTTLConfig struct {
	Indices     time.Duration `mapstructure:"indices"`
	Currency    time.Duration `mapstructure:"currency"`
	Commodities time.Duration `mapstructure:"commodities"`
	Indicators  time.Duration `mapstructure:"indicators"`
}

// RedisConfig captures the shared cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SnapshotConfig tunes assembly behaviour.
type SnapshotConfig struct {
	Timezone    string `mapstructure:"timezone"`
	MarketOpen  string `mapstructure:"market_open"`
	MarketClose string `mapstructure:"market_close"`
}

// FieldConfig describes one snapshot field: where it comes from, the constant
// used when no live value is available, and its plausible band.
type FieldConfig struct {
	Label      string  `mapstructure:"label"`
	Unit       string  `mapstructure:"unit"`
	Group      string  `mapstructure:"group"`
	Source     string  `mapstructure:"source"`
	Identifier string  `mapstructure:"identifier"`
	Baseline   float64 `mapstructure:"baseline"`
	Min        float64 `mapstructure:"min"`
	Max        float64 `mapstructure:"max"`
	Scale      float64 `mapstructure:"scale"`
	Jitter     float64 `mapstructure:"jitter"`
	Volatility float64 `mapstructure:"volatility"`
}

// HistoryConfig controls synthetic history generation.
type HistoryConfig struct {
	Months int    `mapstructure:"months"`
	Seed   uint64 `mapstructure:"seed"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Cooldown     time.Duration  `mapstructure:"cooldown"`
	Channels     []string       `mapstructure:"channels"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram alert parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig exposes Prometheus metrics from `run`.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Path       string `mapstructure:"path"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("ECONSNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("sources.alphavantage.api_key", "ECONSNAP_SOURCES_ALPHAVANTAGE_API_KEY", "ALPHAVANTAGE_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

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

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
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

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func (c *Config) normalize() {
	for name, field := range c.Fields {
		if field.Scale == 0 {
			field.Scale = 1
		}
		field.Group = strings.ToLower(strings.TrimSpace(field.Group))
		field.Source = strings.ToLower(strings.TrimSpace(field.Source))
		if field.Label == "" {
			field.Label = name
		}
		c.Fields[name] = field
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.ClosedInterval < 0 {
		return fmt.Errorf("scheduler.closed_interval cannot be negative")
	}
	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	for _, group := range Groups {
		if c.GroupTTL(group) <= 0 {
			return fmt.Errorf("cache.ttl.%s must be greater than zero", group)
		}
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got %q", c.Cache.Backend)
	}
	if c.History.Months <= 0 {
		return fmt.Errorf("history.months must be greater than zero")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("at least one field must be configured")
	}
	for _, name := range c.FieldNames() {
		if err := c.Fields[name].validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (f FieldConfig) validate(name string) error {
	if !isKnownGroup(f.Group) {
		return fmt.Errorf("fields.%s.group %q is not one of %s", name, f.Group, strings.Join(Groups, ", "))
	}
	switch f.Source {
	case SourceNone, SourceYahoo, SourceWorldBank, SourceAlphaVantage:
	default:
		return fmt.Errorf("fields.%s.source %q is not supported", name, f.Source)
	}
	if f.Source != SourceNone && f.Identifier == "" {
		return fmt.Errorf("fields.%s.identifier is required for source %s", name, f.Source)
	}
	if f.Min >= f.Max {
		return fmt.Errorf("fields.%s: min must be below max", name)
	}
	if f.Baseline < f.Min || f.Baseline > f.Max {
		return fmt.Errorf("fields.%s.baseline %.4f outside [%.4f, %.4f]", name, f.Baseline, f.Min, f.Max)
	}
	if f.Jitter < 0 || f.Jitter >= 1 {
		return fmt.Errorf("fields.%s.jitter must be within [0, 1)", name)
	}
	if f.Volatility < 0 {
		return fmt.Errorf("fields.%s.volatility cannot be negative", name)
	}
	return nil
}

// FieldNames returns configured field names in a stable order.
func (c *Config) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GroupTTL resolves the cache TTL for a data category.
func (c *Config) GroupTTL(group string) time.Duration {
	switch group {
	case GroupIndices:
		return c.Cache.TTL.Indices
	case GroupCurrency:
		return c.Cache.TTL.Currency
	case GroupCommodities:
		return c.Cache.TTL.Commodities
	case GroupIndicators:
		return c.Cache.TTL.Indicators
	default:
		return 0
	}
}

func isKnownGroup(group string) bool {
	for _, g := range Groups {
		if g == group {
			return true
		}
	}
	return false
}
