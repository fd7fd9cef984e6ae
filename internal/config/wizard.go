package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and writing prompts to out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for each setting, starting from base. Empty answers keep the current value.
func (w *Wizard) Run(base *Config) (*Config, error) {
	cfg := DefaultConfig()
	if base != nil {
		copied := *base
		cfg = &copied
	}
	validator := NewValidator()

	fmt.Fprintln(w.out, "=== Relay Configuration Wizard ===")
	fmt.Fprintln(w.out)

	// Telegram
	fmt.Fprintln(w.out, "Telegram:")
	token, err := w.ask("Bot token", mask(cfg.Telegram.BotToken), func(s string) error {
		return validator.ValidateTelegramToken(s)
	})
	if err != nil {
		return nil, err
	}
	if token != "" {
		cfg.Telegram.BotToken = token
	}
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	fmt.Fprintln(w.out)

	// Backend
	fmt.Fprintln(w.out, "Backend:")
	if cfg.Backend.URL, err = w.askDefault("Server URL", cfg.Backend.URL, validator.ValidateBackendURL); err != nil {
		return nil, err
	}
	if cfg.Backend.Username, err = w.askDefault("Username", cfg.Backend.Username, nil); err != nil {
		return nil, err
	}
	password, err := w.ask("Password (empty for none)", mask(cfg.Backend.Password), nil)
	if err != nil {
		return nil, err
	}
	if password != "" {
		cfg.Backend.Password = password
	}
	fmt.Fprintln(w.out)

	// Sessions
	fmt.Fprintln(w.out, "Sessions:")
	fmt.Fprintln(w.out, "  owned - reuse only sessions created for the same user (default)")
	fmt.Fprintln(w.out, "  first - reuse the first session the backend lists")
	fmt.Fprintln(w.out, "  never - always start a new session")
	if cfg.Session.AdoptPolicy, err = w.askDefault("Adopt policy", cfg.Session.AdoptPolicy, validator.ValidateAdoptPolicy); err != nil {
		return nil, err
	}
	fmt.Fprintln(w.out)

	// Logging
	fmt.Fprintln(w.out, "Logging:")
	if cfg.Logging.Level, err = w.askDefault("Log level (debug/info/warn/error)", cfg.Logging.Level, validator.ValidateLogLevel); err != nil {
		return nil, err
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

// askDefault prompts until the answer validates; empty keeps current
func (w *Wizard) askDefault(label, current string, validate func(string) error) (string, error) {
	answer, err := w.ask(label, current, validate)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

func (w *Wizard) ask(label, shown string, validate func(string) error) (string, error) {
	for {
		if shown != "" {
			fmt.Fprintf(w.out, "%s [%s]: ", label, shown)
		} else {
			fmt.Fprintf(w.out, "%s: ", label)
		}

		answer, err := w.readLine()
		if err != nil {
			return "", err
		}
		if answer == "" || validate == nil {
			return answer, nil
		}
		if err := validate(answer); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		return answer, nil
	}
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
