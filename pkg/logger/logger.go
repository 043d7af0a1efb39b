// Package logger provides structured logging for errwatch
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Version is reported on every log line
var Version = "0.3.0"

var (
	globalLogger *Logger
	once         sync.Once
)

// LogLevel represents the logging level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Logger wraps slog.Logger with a component name
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration
type Config struct {
	Level     string
	Format    string    // "json" or "text"
	Output    string    // "stdout", "stderr", or file path
	Component string    // Component name for logs
	Writer    io.Writer // Overrides Output when set
}

// ParseLevel converts a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch LogLevel(level) {
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

// New creates a new logger instance
func New(cfg Config) (*Logger, error) {
	writer := cfg.Writer
	if writer == nil {
		var err error
		if writer, err = openOutput(cfg.Output); err != nil {
			return nil, err
		}
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	logger := slog.New(handler).With(
		"service", "errwatch",
		"version", Version,
	)
	if cfg.Component != "" {
		logger = logger.With("component", cfg.Component)
	}

	return &Logger{
		Logger:    logger,
		component: cfg.Component,
	}, nil
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// Initialize sets up the global logger. Only the first call has an effect.
func Initialize(level, format, output string) error {
	var onceErr error
	once.Do(func() {
		if level == "" {
			level = string(LevelInfo)
		}
		if format == "" {
			format = "text"
		}

		var err error
		globalLogger, err = New(Config{
			Level:  level,
			Format: format,
			Output: output,
		})
		if err != nil {
			onceErr = fmt.Errorf("failed to initialize logger: %w", err)
			return
		}

		slog.SetDefault(globalLogger.Logger)
		globalLogger.Debug("logger initialized",
			"level", level,
			"format", format,
			"output", output,
		)
	})
	return onceErr
}

// Global returns the global logger instance
func Global() *Logger {
	if globalLogger == nil {
		// stderr keeps CLI output on stdout clean before Initialize
		logger, _ := New(Config{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		})
		return logger
	}
	return globalLogger
}

// Component returns the component name
func (l *Logger) Component() string {
	return l.component
}

// WithComponent returns a new logger with the component name set
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger.With("component", component),
		component: component,
	}
}

// WithRequestID returns a new logger with a request ID for tracing
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With("request_id", requestID),
		component: l.component,
	}
}

// ErrorEvent logs an error with its type
func (l *Logger) ErrorEvent(ctx context.Context, message string, err error, attrs ...slog.Attr) {
	all := append([]slog.Attr{
		slog.String("error", err.Error()),
		slog.String("error_type", fmt.Sprintf("%T", err)),
	}, attrs...)
	l.LogAttrs(ctx, slog.LevelError, message, all...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Global().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Global().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Global().Error(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Global().Debug(msg, args...)
}
