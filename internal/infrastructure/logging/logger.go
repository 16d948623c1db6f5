package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-venstar/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "venstar-bridge"

// redacted replaces the value of any attribute whose key names a secret.
const redacted = "[REDACTED]"

// sensitiveKeys are matched case-insensitively as substrings of attribute keys.
var sensitiveKeys = []string{"password", "secret", "token", "pin", "authorization"}

// Logger wraps slog.Logger with bridge-specific defaults.
//
// It satisfies the narrow Logger interfaces declared by the bridge, API and
// HomeKit packages (Debug/Info/Warn/Error with key-value pairs). Safe for
// concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from the logging section of the config file.
// Every entry carries the service name and build version, and attributes
// whose keys look like credentials are redacted.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return newWithWriter(cfg, version, output)
}

func newWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// redact masks credential-bearing attributes before they reach the handler.
func redact(_ []string, a slog.Attr) slog.Attr {
	if isSensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// parseLevel converts a string log level to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ForComponent tags entries with the subsystem that produced them
// (venstar, api, homekit).
func (l *Logger) ForComponent(name string) *Logger {
	return l.With("component", name)
}

// ForDevice tags entries with a thermostat ID.
func (l *Logger) ForDevice(deviceID string) *Logger {
	return l.With("device_id", deviceID)
}

// Default creates a logger for use before configuration is loaded:
// JSON on stdout at info level.
func Default(version string) *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, version)
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
