package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Broker    BrokerConfig    `mapstructure:"broker" yaml:"broker"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// APIConfig points the gateway at the backend HTTP API
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// BrokerConfig configures the chat message broker connection
type BrokerConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
}

// StorageConfig locates the local sqlite database (token + transcripts)
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the rotated log file
type LogConfig struct {
	Dir   string `mapstructure:"dir" yaml:"dir"`
	Debug bool   `mapstructure:"debug" yaml:"debug"`
}

// TelemetryConfig toggles the otel file exporters
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load reads configuration from defaults, an optional yaml file and RECIPECHAT_* env vars
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("recipechat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/recipechat")
	}

	v.SetEnvPrefix("RECIPECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 60*time.Second)
	v.SetDefault("broker.url", "ws://localhost:8080/ws")
	v.SetDefault("broker.reconnect_delay", 5*time.Second)
	v.SetDefault("storage.path", "recipechat.db")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.debug", false)
	v.SetDefault("telemetry.enabled", true)
}

// Validate checks the settings that would otherwise fail late at dial time
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("invalid api.base_url %q: %w", c.API.BaseURL, err)
	}
	u, err := url.ParseRequestURI(c.Broker.URL)
	if err != nil {
		return fmt.Errorf("invalid broker.url %q: %w", c.Broker.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("broker.url must use ws:// or wss://, got %q", c.Broker.URL)
	}
	if c.Broker.ReconnectDelay < 0 {
		return fmt.Errorf("broker.reconnect_delay must not be negative")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	return nil
}
