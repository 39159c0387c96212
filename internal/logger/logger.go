// Package logger builds the slog logger the server runs on. Output is
// JSON by default, every record can carry a correlation ID, and
// credential material (passwords, JWTs, admin secrets) is redacted
// before it reaches the handler.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// CorrelationIDKey is the context key for correlation/request ID
	CorrelationIDKey ContextKey = "correlation_id"
	// RequestIDKey is an alias for correlation ID (used by chi middleware)
	RequestIDKey ContextKey = "request_id"
)

// redactedSubstrings marks attribute keys whose values must never be
// logged. Matching is by substring, so "user_password", "admin_jwt"
// and "session_token" are all caught.
var redactedSubstrings = []string{
	"password",
	"token",
	"jwt",
	"secret",
	"api_key",
	"apikey",
	"authorization",
	"auth",
	"credential",
	"cookie",
}

// Config holds logger configuration
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string
	// Format is the log format (json, text)
	Format string
	// Output is the log output destination (stdout, stderr, or file path)
	Output string
	// AddSource adds source file and line number to log entries
	AddSource bool
}

// DefaultConfig reads the LOG_* environment variables, defaulting to
// JSON on stdout at info level.
func DefaultConfig() Config {
	cfg := Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		cfg.Output = v
	}
	switch strings.ToLower(os.Getenv("LOG_ADD_SOURCE")) {
	case "true", "1", "yes":
		cfg.AddSource = true
	}
	return cfg
}

// New creates a structured logger from the configuration. An
// unwritable file output falls back to stdout rather than failing
// startup.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactSensitive,
	}

	out := openOutput(cfg.Output)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func openOutput(dest string) io.Writer {
	switch strings.ToLower(dest) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout
	}
	return file
}

// redactSensitive replaces the value of any attribute whose key looks
// like credential material.
func redactSensitive(groups []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, needle := range redactedSubstrings {
		if strings.Contains(key, needle) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// WithCorrelationID returns a logger that tags every record with the
// request's correlation ID, if the context carries one.
func WithCorrelationID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := GetCorrelationID(ctx); id != "" {
		return logger.With(slog.String("correlation_id", id))
	}
	return logger
}

// GetCorrelationID extracts the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok && id != "" {
		return id
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return id
	}
	return ""
}

// SetCorrelationID adds a correlation ID to the context
func SetCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}
