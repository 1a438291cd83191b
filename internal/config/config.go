package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rzayevsahil/Monity/internal/tracker"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Retention RetentionConfig `mapstructure:"retention"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// DatabaseConfig defines the SQLite database location
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines foreground tracking behavior
type TrackingConfig struct {
	PollInterval      string   `mapstructure:"poll_interval"`
	IdleThreshold     string   `mapstructure:"idle_threshold"`
	MinSessionSeconds int64    `mapstructure:"min_session_seconds"`
	IgnoredProcesses  []string `mapstructure:"ignored_processes"`
}

// BufferConfig defines session write buffering
type BufferConfig struct {
	FlushCount    int    `mapstructure:"flush_count"`
	FlushInterval string `mapstructure:"flush_interval"`
}

// LimitsConfig defines daily limit checking
type LimitsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RetentionConfig defines automatic history cleanup
type RetentionConfig struct {
	Days int `mapstructure:"days"`
}

// MetricsConfig defines the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        int    `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("monity")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "monity"))
		}
	}
	v.SetEnvPrefix("MONITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath())

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.poll_interval", "1s")
	v.SetDefault("tracking.idle_threshold", "60s")
	v.SetDefault("tracking.min_session_seconds", 0)
	v.SetDefault("tracking.ignored_processes", []string{})

	// Buffer defaults
	v.SetDefault("buffer.flush_count", 20)
	v.SetDefault("buffer.flush_interval", "5m")

	// Limits defaults
	v.SetDefault("limits.enabled", true)

	// Retention defaults, 0 disables automatic cleanup
	v.SetDefault("retention.days", 0)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "monity.db"
	}
	return filepath.Join(dir, "monity", "monity.db")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if _, err := time.ParseDuration(cfg.Tracking.PollInterval); err != nil {
		return fmt.Errorf("invalid tracking poll_interval: %w", err)
	}
	if d, err := time.ParseDuration(cfg.Tracking.IdleThreshold); err != nil {
		return fmt.Errorf("invalid tracking idle_threshold: %w", err)
	} else if d < tracker.MinIdleThreshold || d > tracker.MaxIdleThreshold {
		return fmt.Errorf("tracking idle_threshold must be between %s and %s",
			tracker.MinIdleThreshold, tracker.MaxIdleThreshold)
	}
	if cfg.Tracking.MinSessionSeconds < 0 {
		return fmt.Errorf("tracking min_session_seconds must not be negative")
	}

	if cfg.Buffer.FlushCount <= 0 {
		return fmt.Errorf("buffer flush_count must be positive")
	}
	if _, err := time.ParseDuration(cfg.Buffer.FlushInterval); err != nil {
		return fmt.Errorf("invalid buffer flush_interval: %w", err)
	}

	if cfg.Retention.Days < 0 {
		return fmt.Errorf("retention days must not be negative")
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	return nil
}

// ParsedPollInterval returns the parsed poll interval
func (c *TrackingConfig) ParsedPollInterval() time.Duration {
	return parseDuration(c.PollInterval, time.Second)
}

// ParsedIdleThreshold returns the parsed idle threshold
func (c *TrackingConfig) ParsedIdleThreshold() time.Duration {
	return parseDuration(c.IdleThreshold, 60*time.Second)
}

// ParsedFlushInterval returns the parsed flush interval
func (c *BufferConfig) ParsedFlushInterval() time.Duration {
	return parseDuration(c.FlushInterval, 5*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
