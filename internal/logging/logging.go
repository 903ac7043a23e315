// Package logging provides structured logging for mpsim using the
// standard library's slog package. It supports JSON and text output,
// per-job contextual fields (scenario, trial, request ID), and sensitive
// data redaction.
//
// Usage:
//
//	logger := logging.New(logging.Config{
//	    Level:  slog.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("runner starting", slog.Int("max_concurrency", 4))
//
//	ctx = logging.WithJob(ctx, "baseline", 3)
//	logging.FromContext(ctx).Info("engine started")
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// =============================================================================
// Log Format Constants
// =============================================================================

// Format specifies the log output format.
type Format string

const (
	// FormatJSON outputs structured JSON logs, ideal for production and log aggregation.
	FormatJSON Format = "json"

	// FormatText outputs human-readable text logs, ideal for development.
	FormatText Format = "text"
)

// =============================================================================
// Context Keys
// =============================================================================

type contextKey string

const (
	loggerKey    contextKey = "mpsim_logger"
	scenarioKey  contextKey = "mpsim_scenario"
	trialKey     contextKey = "mpsim_trial"
	requestIDKey contextKey = "mpsim_request_id"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	// Defaults to slog.LevelInfo if zero.
	Level slog.Level

	// Format specifies the output format (json or text).
	// Defaults to FormatJSON if empty.
	Format Format

	// Output is the destination for log output.
	// Defaults to os.Stdout if nil.
	Output io.Writer

	// AddSource includes source file and line number in log output.
	AddSource bool

	// TimeFormat specifies the time format for text output.
	// Defaults to time.RFC3339 if empty. Ignored for JSON format.
	TimeFormat string

	// ServiceName is included in every log entry, distinguishing
	// cmd/mpsim from cmd/mpsim-worker in aggregated logs.
	ServiceName string

	// Environment is included in every log entry (development, production, etc.).
	Environment string
}

func (c *Config) applyDefaults() {
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
	if c.TimeFormat == "" {
		c.TimeFormat = time.RFC3339
	}
	if c.ServiceName == "" {
		c.ServiceName = "mpsim"
	}
}

// =============================================================================
// Logger Construction
// =============================================================================

// New creates a new structured logger with the given configuration.
func New(cfg Config) *slog.Logger {
	cfg.applyDefaults()

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if isSensitiveKey(a.Key) {
				return slog.String(a.Key, "[REDACTED]")
			}
			if a.Key == slog.TimeKey && cfg.Format == FormatText {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(a.Key, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.Output, opts)
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	attrs := make([]slog.Attr, 0, 2)
	if cfg.ServiceName != "" {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, slog.String("env", cfg.Environment))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	return slog.New(handler)
}

// NewFromEnv creates a logger configured from environment variables.
//
// Environment variables:
//   - MPSIM_LOG_LEVEL: debug, info, warn, error (default: info)
//   - MPSIM_LOG_FORMAT: json, text (default: json)
//   - MPSIM_LOG_SOURCE: true, false (default: false)
func NewFromEnv() *slog.Logger {
	return New(Config{
		Level:       parseLogLevel(os.Getenv("MPSIM_LOG_LEVEL")),
		Format:      parseLogFormat(os.Getenv("MPSIM_LOG_FORMAT")),
		AddSource:   parseBool(os.Getenv("MPSIM_LOG_SOURCE")),
		Environment: os.Getenv("MPSIM_APP_ENV"),
	})
}

// Default returns a production-ready JSON logger.
func Default() *slog.Logger {
	return New(Config{Level: slog.LevelInfo, Format: FormatJSON})
}

// Development returns a development-friendly logger with text output and debug level.
func Development() *slog.Logger {
	return New(Config{Level: slog.LevelDebug, Format: FormatText, AddSource: true})
}

// =============================================================================
// Context Integration
// =============================================================================

// NewContext returns a new context with the logger attached.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or the default logger if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithJob attaches scenario and trial identifiers to the context and
// returns a logger with those fields already set, so every log line a
// Runner emits while executing this job is self-describing.
func WithJob(ctx context.Context, scenario string, trial int) context.Context {
	ctx = context.WithValue(ctx, scenarioKey, scenario)
	ctx = context.WithValue(ctx, trialKey, trial)
	logger := FromContext(ctx).With(slog.String("scenario", scenario), slog.Int("trial", trial))
	return NewContext(ctx, logger)
}

// WithRequestID adds a request ID to the context and returns a logger with it attached.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	logger := FromContext(ctx).With(slog.String("request_id", requestID))
	return NewContext(ctx, logger)
}

// ScenarioFromContext retrieves the scenario name attached by WithJob.
func ScenarioFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(scenarioKey).(string); ok {
		return s
	}
	return ""
}

// RequestIDFromContext retrieves the request ID attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// =============================================================================
// Error Logging Helpers
// =============================================================================

// Error logs an error with caller file/line context.
func Error(logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	if logger == nil {
		logger = slog.Default()
	}

	_, file, line, ok := runtime.Caller(1)
	if ok {
		attrs = append(attrs,
			slog.String("error", err.Error()),
			slog.String("error_file", file),
			slog.Int("error_line", line),
		)
	} else {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	logger.Error(msg, args...)
}

// ErrorContext logs an error using the logger from context.
func ErrorContext(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	Error(FromContext(ctx), msg, err, attrs...)
}

// =============================================================================
// Sensitive Data Handling
// =============================================================================

// sensitiveKeys lists field names that should be redacted. The manifest
// signing secret is the only secret this module ever logs near, so it is
// the one domain-specific addition to the generic list.
var sensitiveKeys = map[string]bool{
	"password":        true,
	"secret":          true,
	"token":           true,
	"api_key":         true,
	"apikey":          true,
	"authorization":   true,
	"credential":      true,
	"private_key":     true,
	"manifest_secret": true,
	"jwt":             true,
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// AddSensitiveKey adds a key to the list of sensitive keys that will be redacted.
func AddSensitiveKey(key string) {
	sensitiveKeys[strings.ToLower(key)] = true
}

// =============================================================================
// Helper Functions
// =============================================================================

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseLogFormat(format string) Format {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
