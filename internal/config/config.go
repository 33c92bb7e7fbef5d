// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Lookup   LookupConfig   `mapstructure:"lookup" yaml:"lookup"`
}

// LoggerConfig defines the settings for the application logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig holds the connection string for result persistence. An
// empty URL disables persistence entirely.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig locates the browser's remote debugging endpoint.
type BrowserConfig struct {
	Host        string        `mapstructure:"host" yaml:"host"`
	Port        int           `mapstructure:"port" yaml:"port"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// NetworkConfig tunes page navigation and polling behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// LookupConfig tunes the concurrent source fan-out.
type LookupConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Sources       []string      `mapstructure:"sources" yaml:"sources"`
}

// NewDefaultConfig returns a configuration populated entirely from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "chrome-osint")
	v.SetDefault("logger.log_file", "chrome-osint.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Browser --
	v.SetDefault("browser.host", "127.0.0.1")
	v.SetDefault("browser.port", 9222)
	v.SetDefault("browser.dial_timeout", "10s")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.post_load_wait", "500ms")
	v.SetDefault("network.selector_timeout", "10s")
	v.SetDefault("network.poll_interval", "100ms")

	// -- Lookup --
	v.SetDefault("lookup.timeout", "2m")
	v.SetDefault("lookup.rate_per_second", 4.0)
	v.SetDefault("lookup.sources", []string{})
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for logical inconsistencies.
func (c *Config) Validate() error {
	if c.Browser.Host == "" {
		return fmt.Errorf("browser.host must not be empty")
	}
	if c.Browser.Port <= 0 || c.Browser.Port > 65535 {
		return fmt.Errorf("browser.port must be a valid TCP port")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be positive")
	}
	if c.Network.PollInterval <= 0 {
		return fmt.Errorf("network.poll_interval must be positive")
	}
	if c.Network.SelectorTimeout < c.Network.PollInterval {
		return fmt.Errorf("network.selector_timeout must be at least one poll interval")
	}
	if c.Lookup.RatePerSecond <= 0 {
		return fmt.Errorf("lookup.rate_per_second must be positive")
	}
	return nil
}
