// Package logger provides the structured logger shared by every service.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls how a Logger is built.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"KEYLEDGER_LOG_LEVEL"`
	Format     string `yaml:"format" env:"KEYLEDGER_LOG_FORMAT"`
	Output     string `yaml:"output" env:"KEYLEDGER_LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"KEYLEDGER_LOG_FILE_PREFIX"`
}

// Logger wraps a logrus entry bound to a component name.
type Logger struct {
	*logrus.Entry
}

// NewDefault returns an info-level text logger writing to stderr.
func NewDefault(component string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{Entry: base.WithField("component", component)}
}

// New builds a logger from configuration. Unknown levels fall back to info.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out, err := openOutput(cfg)
	if err != nil {
		base.SetOutput(os.Stderr)
		base.WithError(err).Warn("log output unavailable; using stderr")
	} else {
		base.SetOutput(out)
	}

	return &Logger{Entry: base.WithField("component", "keyledger")}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{Entry: logrus.NewEntry(base)}
}

// Named returns a child logger tagged with another component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", component)}
}

// With returns a child logger carrying an extra field.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

func openOutput(cfg LoggingConfig) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "keyledger"
		}
		path := fmt.Sprintf("%s-%s.log", prefix, time.Now().Format("2006-01-02"))
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
}
