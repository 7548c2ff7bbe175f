package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the structured logger threaded through a dedup run.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

type Config struct {
	Level      Level
	Output     io.Writer
	JSON       bool
	TimeFormat string
}

func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

func ParseLevel(value string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(InfoLevel):
		return InfoLevel, nil
	case string(DebugLevel):
		return DebugLevel, nil
	case string(WarnLevel), "warning":
		return WarnLevel, nil
	case string(ErrorLevel):
		return ErrorLevel, nil
	default:
		return "", fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", value)
	}
}

func (level Level) charmLevel() charmlog.Level {
	switch level {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

type charmLogger struct {
	inner *charmlog.Logger
}

func New(config Config) Logger {
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	timeFormat := config.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05"
	}
	inner := charmlog.NewWithOptions(output, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Level:           config.Level.charmLevel(),
	})
	if config.JSON {
		inner.SetFormatter(charmlog.JSONFormatter)
	} else {
		inner.SetFormatter(charmlog.TextFormatter)
	}
	return &charmLogger{inner: inner}
}

// Discard returns a logger that drops every entry.
func Discard() Logger {
	return New(Config{Level: ErrorLevel, Output: io.Discard})
}

func (logger *charmLogger) Debug(msg string, keyvals ...any) {
	logger.inner.Debug(msg, keyvals...)
}

func (logger *charmLogger) Info(msg string, keyvals ...any) {
	logger.inner.Info(msg, keyvals...)
}

func (logger *charmLogger) Warn(msg string, keyvals ...any) {
	logger.inner.Warn(msg, keyvals...)
}

func (logger *charmLogger) Error(msg string, keyvals ...any) {
	logger.inner.Error(msg, keyvals...)
}

func (logger *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{inner: logger.inner.With(keyvals...)}
}
