// Package logging provides structured logging for tangle on top of log/slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel represents different log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the structured logging interface threaded through tangle.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...any)
	Info(ctx context.Context, msg string, fields ...any)
	Warn(ctx context.Context, err error, msg string, fields ...any)
	Error(ctx context.Context, err error, msg string, fields ...any)

	WithComponent(component string) Logger
}

// Config holds logger configuration.
type Config struct {
	Level  LogLevel
	Format string // "json" or "text"
	Output io.Writer
}

// DefaultConfig returns the default logger configuration: info-level text
// output on stderr, keeping stdout free for compiled documents.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// TangleLogger implements Logger backed by slog.
type TangleLogger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
}

// NewLogger creates a new structured logger.
func NewLogger(config *Config) *TangleLogger {
	if config == nil {
		config = DefaultConfig()
	}

	opts := &slog.HandlerOptions{Level: slogLevel(config.Level)}
	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &TangleLogger{
		logger: slog.New(handler),
		level:  config.Level,
	}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message.
func (l *TangleLogger) Debug(ctx context.Context, msg string, fields ...any) {
	if l.level > LevelDebug {
		return
	}
	l.log(ctx, slog.LevelDebug, nil, msg, fields...)
}

// Info logs an info message.
func (l *TangleLogger) Info(ctx context.Context, msg string, fields ...any) {
	if l.level > LevelInfo {
		return
	}
	l.log(ctx, slog.LevelInfo, nil, msg, fields...)
}

// Warn logs a warning message.
func (l *TangleLogger) Warn(ctx context.Context, err error, msg string, fields ...any) {
	if l.level > LevelWarn {
		return
	}
	l.log(ctx, slog.LevelWarn, err, msg, fields...)
}

// Error logs an error message.
func (l *TangleLogger) Error(ctx context.Context, err error, msg string, fields ...any) {
	l.log(ctx, slog.LevelError, err, msg, fields...)
}

// WithComponent creates a new logger with component context.
func (l *TangleLogger) WithComponent(component string) Logger {
	return &TangleLogger{
		logger:    l.logger,
		level:     l.level,
		component: component,
	}
}

func (l *TangleLogger) log(ctx context.Context, level slog.Level, err error, msg string, fields ...any) {
	attrs := make([]slog.Attr, 0, len(fields)/2+2)

	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			attrs = append(attrs, slog.Any(key, fields[i+1]))
		}
	}

	record := slog.NewRecord(time.Now(), level, msg, 0)
	record.AddAttrs(attrs...)
	_ = l.logger.Handler().Handle(ctx, record)
}

// NopLogger discards every message. Used in tests and as a safe default for
// components constructed without a logger.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(context.Context, string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(context.Context, string, ...any) {}

// Warn implements Logger.
func (NopLogger) Warn(context.Context, error, string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(context.Context, error, string, ...any) {}

// WithComponent implements Logger.
func (l NopLogger) WithComponent(string) Logger { return l }
