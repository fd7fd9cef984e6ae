package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config represents the relay configuration
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Backend
	Backend BackendConfig `json:"backend" mapstructure:"backend"`

	// Session directory
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Relay
	Relay RelayConfig `json:"relay" mapstructure:"relay"`

	// Health probe
	Health HealthConfig `json:"health" mapstructure:"health"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken         string `json:"bot_token" mapstructure:"bot_token"`
	CommandPrefix    string `json:"command_prefix" mapstructure:"command_prefix"`
	DedupeTTLSeconds int    `json:"dedupe_ttl_seconds" mapstructure:"dedupe_ttl_seconds"`
	StatusMessage    string `json:"status_message" mapstructure:"status_message"`
	APIEndpoint      string `json:"api_endpoint,omitempty" mapstructure:"api_endpoint"` // Bot API URL format, empty uses api.telegram.org
}

// BackendConfig holds the conversational backend connection
type BackendConfig struct {
	URL            string `json:"url" mapstructure:"url"`
	Username       string `json:"username" mapstructure:"username"`
	Password       string `json:"password" mapstructure:"password"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"` // 0 = no client timeout
}

// Timeout returns the HTTP client timeout
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// SessionConfig holds session directory settings
type SessionConfig struct {
	TitlePrefix string `json:"title_prefix" mapstructure:"title_prefix"`
	AdoptPolicy string `json:"adopt_policy" mapstructure:"adopt_policy"` // owned, first, never
}

// RelayConfig holds turn handling settings
type RelayConfig struct {
	MaxDisplayChars int `json:"max_display_chars" mapstructure:"max_display_chars"`
	MaxInFlight     int `json:"max_in_flight" mapstructure:"max_in_flight"`
}

// HealthConfig holds the backend health probe schedule
type HealthConfig struct {
	Schedule string `json:"schedule" mapstructure:"schedule"` // cron spec, empty disables
}

// MetricsConfig holds the Prometheus listener
type MetricsConfig struct {
	Listen string `json:"listen" mapstructure:"listen"` // host:port, empty disables
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			CommandPrefix:    "/",
			DedupeTTLSeconds: 300,
			StatusMessage:    "💭 Thinking...",
		},
		Backend: BackendConfig{
			URL:      "http://localhost:4096",
			Username: "opencode",
		},
		Session: SessionConfig{
			TitlePrefix: "Telegram User",
			AdoptPolicy: "owned",
		},
		Relay: RelayConfig{
			MaxDisplayChars: 4000,
			MaxInFlight:     16,
		},
		Health: HealthConfig{
			Schedule: "@every 5m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
			Pretty:    true,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Telegram.BotToken != "" {
		masked.Telegram.BotToken = "***"
	}
	if masked.Backend.Password != "" {
		masked.Backend.Password = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks the settings the daemon cannot start without. A missing
// token is reported on its own; every other problem is joined into one error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("telegram bot token is required (set telegram.bot_token or TELEGRAM_BOT_TOKEN)")
	}

	return errors.Join(NewValidator().ValidateConfig(c)...)
}
