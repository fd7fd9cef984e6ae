package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix     = "RELAY"
	dirName       = ".relay"
	fileName      = "relay.json"
	logFileName   = "relay.log"
	filePerm      = 0600
	directoryPerm = 0755
)

// envAliases binds well-known variable names next to the RELAY_ ones.
// The first listed variable wins when several are set.
var envAliases = map[string][]string{
	"telegram.bot_token": {"RELAY_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"},
	"backend.url":        {"RELAY_BACKEND_URL", "OPENCODE_SERVER_URL"},
	"backend.username":   {"RELAY_BACKEND_USERNAME", "OPENCODE_USERNAME"},
	"backend.password":   {"RELAY_BACKEND_PASSWORD", "OPENCODE_SERVER_PASSWORD"},
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file if present, then applies environment overrides
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to get home directory")
	}

	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set data directory if not specified
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(configPath)
	}

	// Set logging file path if not specified
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, logFileName)
	}

	return cfg, nil
}

// newViper returns a viper instance seeded with defaults and env bindings
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	for key, names := range envAliases {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}

	return v
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("telegram.bot_token", d.Telegram.BotToken)
	v.SetDefault("telegram.command_prefix", d.Telegram.CommandPrefix)
	v.SetDefault("telegram.dedupe_ttl_seconds", d.Telegram.DedupeTTLSeconds)
	v.SetDefault("telegram.status_message", d.Telegram.StatusMessage)
	v.SetDefault("telegram.api_endpoint", d.Telegram.APIEndpoint)

	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.username", d.Backend.Username)
	v.SetDefault("backend.password", d.Backend.Password)
	v.SetDefault("backend.timeout_seconds", d.Backend.TimeoutSeconds)

	v.SetDefault("session.title_prefix", d.Session.TitlePrefix)
	v.SetDefault("session.adopt_policy", d.Session.AdoptPolicy)

	v.SetDefault("relay.max_display_chars", d.Relay.MaxDisplayChars)
	v.SetDefault("relay.max_in_flight", d.Relay.MaxInFlight)

	v.SetDefault("health.schedule", d.Health.Schedule)
	v.SetDefault("metrics.listen", d.Metrics.Listen)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.redaction", d.Logging.Redaction)
	v.SetDefault("logging.pretty", d.Logging.Pretty)

	v.SetDefault("data_dir", d.DataDir)
}

// Save writes the configuration file with owner-only permissions
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to get home directory")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), directoryPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")

	v.Set("telegram", cfg.Telegram)
	v.Set("backend", cfg.Backend)
	v.Set("session", cfg.Session)
	v.Set("relay", cfg.Relay)
	v.Set("health", cfg.Health)
	v.Set("metrics", cfg.Metrics)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// the file carries the bot token and backend password
	if err := os.Chmod(configPath, filePerm); err != nil {
		return fmt.Errorf("failed to restrict config file permissions: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, dirName, fileName)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
