package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

// Field keys shared by relay log lines. A top-level service tags itself with
// component; parts of that service add module so the component is kept.
const (
	FieldComponent   = "component"
	FieldModule      = "module"
	FieldRunID       = "run_id"
	FieldParticipant = "participant"
)

// Logger owns the process log sinks
type Logger struct {
	zl       zerolog.Logger
	file     io.WriteCloser
	redactor *Redactor
}

// Config holds logger configuration
type Config struct {
	Level     string // debug, info, warn, error
	File      string // log file path
	Console   bool   // enable console output
	Pretty    bool   // pretty format for console
	Redaction bool   // enable sensitive data redaction
	MaxSize   int    // max size in MB before rotation
	MaxAge    int    // max age in days
	Compress  bool   // compress rotated logs

	// Secrets are literal values scrubbed from every line when redaction is on,
	// such as the bot token and the backend password.
	Secrets []string
}

// New creates the process logger
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	file, err := openFile(cfg)
	if err != nil {
		return nil, err
	}

	var writers []io.Writer
	if cfg.Console {
		var console io.Writer = os.Stdout
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		writers = append(writers, console)
	}
	if file != nil {
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		for _, secret := range cfg.Secrets {
			if secret == "" {
				continue
			}
			if err := redactor.AddPattern(regexp.QuoteMeta(secret)); err != nil {
				if file != nil {
					_ = file.Close()
				}
				return nil, fmt.Errorf("failed to register secret for redaction: %w", err)
			}
		}
		writer = redactor.Wrap(writer)
	}

	return &Logger{
		zl:       zerolog.New(writer).Level(level).With().Timestamp().Logger(),
		file:     file,
		redactor: redactor,
	}, nil
}

// openFile opens the log file, rotated when a size limit is set
func openFile(cfg Config) (io.WriteCloser, error) {
	if cfg.File == "" {
		return nil, nil
	}
	if cfg.MaxSize > 0 {
		return NewRotatingWriter(cfg.File, cfg.MaxSize, cfg.MaxAge, cfg.Compress)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Zerolog returns the root logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Component returns the root logger tagged with a component
func (l *Logger) Component(name string) zerolog.Logger {
	return Component(l.zl, name)
}

// Run tags every line of one daemon run so restarts can be told apart
func (l *Logger) Run(runID string) zerolog.Logger {
	return l.zl.With().Str(FieldRunID, runID).Logger()
}

// Component tags parent with a component
func Component(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str(FieldComponent, name).Logger()
}

// Module tags a part of a component
func Module(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str(FieldModule, name).Logger()
}
