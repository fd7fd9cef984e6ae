package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

var telegramTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTelegramToken validates a Telegram bot token
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// Telegram bot tokens have format: <bot_id>:<token>
	if !telegramTokenPattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateBackendURL validates the backend base URL
func (v *Validator) ValidateBackendURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("backend url cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend url scheme %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("backend url %q has no host", raw)
	}
	if u.User != nil {
		return fmt.Errorf("backend url must not embed credentials; use backend.username and backend.password")
	}

	return nil
}

// ValidateAdoptPolicy validates the session adopt policy
func (v *Validator) ValidateAdoptPolicy(policy string) error {
	if policy == "" {
		return nil // Use default
	}

	validPolicies := []string{"owned", "first", "never"}
	for _, valid := range validPolicies {
		if strings.EqualFold(policy, valid) {
			return nil
		}
	}
	return fmt.Errorf("invalid adopt policy: %s (must be one of: %s)", policy, strings.Join(validPolicies, ", "))
}

// ValidateCommandPrefix validates the chat command prefix
func (v *Validator) ValidateCommandPrefix(prefix string) error {
	if prefix == "" {
		return nil // Use default
	}
	if strings.ContainsAny(prefix, " \t\n") {
		return fmt.Errorf("command prefix must not contain whitespace")
	}
	return nil
}

// ValidateSchedule validates a cron schedule for the health probe
func (v *Validator) ValidateSchedule(spec string) error {
	if spec == "" {
		return nil // Disabled
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid health schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateListenAddr validates the metrics listen address
func (v *Validator) ValidateListenAddr(addr string) error {
	if addr == "" {
		return nil // Disabled
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid metrics listen address %q: %w", addr, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return nil // Use default
	}
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Validate Telegram
	if cfg.Telegram.BotToken != "" {
		if err := v.ValidateTelegramToken(cfg.Telegram.BotToken); err != nil {
			errors = append(errors, err)
		}
	}
	if err := v.ValidateCommandPrefix(cfg.Telegram.CommandPrefix); err != nil {
		errors = append(errors, err)
	}
	if cfg.Telegram.DedupeTTLSeconds < 0 {
		errors = append(errors, fmt.Errorf("telegram dedupe_ttl_seconds must be >= 0"))
	}

	// Validate backend
	if err := v.ValidateBackendURL(cfg.Backend.URL); err != nil {
		errors = append(errors, err)
	}
	if cfg.Backend.TimeoutSeconds < 0 {
		errors = append(errors, fmt.Errorf("backend timeout_seconds must be >= 0"))
	}

	// Validate session and relay
	if err := v.ValidateAdoptPolicy(cfg.Session.AdoptPolicy); err != nil {
		errors = append(errors, err)
	}
	if cfg.Relay.MaxDisplayChars < 0 {
		errors = append(errors, fmt.Errorf("relay max_display_chars must be >= 0"))
	}
	if cfg.Relay.MaxInFlight < 0 {
		errors = append(errors, fmt.Errorf("relay max_in_flight must be >= 0"))
	}

	if err := v.ValidateSchedule(cfg.Health.Schedule); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateListenAddr(cfg.Metrics.Listen); err != nil {
		errors = append(errors, err)
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
