package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ogulcanaydogan/fuel-guardian/pkg/forecast"
	"github.com/spf13/viper"
)

// Config holds all Fuel Guardian configuration.
type Config struct {
	Storage  StorageConfig    `mapstructure:"storage"`
	Forecast forecast.Options `mapstructure:"forecast"`
	Alerts   AlertsConfig     `mapstructure:"alerts"`
	Cycle    CycleConfig      `mapstructure:"cycle"`
	Lock     LockConfig       `mapstructure:"lock"`
	Server   ServerConfig     `mapstructure:"server"`
	Logging  LoggingConfig    `mapstructure:"logging"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// AlertsConfig defines severity thresholds and notification channels.
type AlertsConfig struct {
	CriticalDays int           `mapstructure:"critical_days" validate:"gte=0"`
	WarningDays  int           `mapstructure:"warning_days" validate:"gtefield=CriticalDays"`
	Slack        SlackConfig   `mapstructure:"slack"`
	Webhook      WebhookConfig `mapstructure:"webhook"`
	Email        EmailConfig   `mapstructure:"email"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" validate:"required_if=Enabled true"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
	Secret  string `mapstructure:"secret"`
}

// EmailConfig defines the mail API settings.
type EmailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key" validate:"required_if=Enabled true"`
	BaseURL     string `mapstructure:"base_url"`
	FromName    string `mapstructure:"from_name"`
	FromAddress string `mapstructure:"from_address" validate:"required_if=Enabled true"`
}

// BreakerConfig tunes the circuit breaker around each channel.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CycleConfig defines how reconciliation cycles run.
type CycleConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Workers  int           `mapstructure:"workers" validate:"gte=1,lte=64"`
}

// LockConfig selects the per-site lock backend.
type LockConfig struct {
	Backend  string        `mapstructure:"backend" validate:"oneof=memory redis"`
	RedisURL string        `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// ServerConfig defines the status server.
type ServerConfig struct {
	Listen string `mapstructure:"listen" validate:"required"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".fuelguard"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".fuelguard", "fuelguard.db"))

	fo := forecast.DefaultOptions()
	v.SetDefault("forecast.min_records", fo.MinRecords)
	v.SetDefault("forecast.min_intervals", fo.MinIntervals)
	v.SetDefault("forecast.outlier_min_samples", fo.OutlierMinSamples)
	v.SetDefault("forecast.iqr_multiplier", fo.IQRMultiplier)
	v.SetDefault("forecast.default_daily_hours", fo.DefaultDailyHours)
	v.SetDefault("forecast.max_daily_hours", fo.MaxDailyHours)
	v.SetDefault("forecast.min_daily_hours", fo.MinDailyHours)

	v.SetDefault("alerts.critical_days", 7)
	v.SetDefault("alerts.warning_days", 14)
	v.SetDefault("alerts.slack.channel", "#fuel-alerts")
	v.SetDefault("alerts.email.from_name", "Fuel Guardian")
	v.SetDefault("alerts.breaker.max_failures", 5)
	v.SetDefault("alerts.breaker.timeout", "30s")

	v.SetDefault("cycle.interval", "1h")
	v.SetDefault("cycle.workers", 4)
	v.SetDefault("lock.backend", "memory")
	v.SetDefault("lock.ttl", "2m")
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("FG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
