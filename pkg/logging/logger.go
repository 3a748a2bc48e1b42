// Package logging provides structured logging for the WSAPI client using zerolog.
//
// Two kinds of loggers exist: component loggers derived from the global
// logger (NewLogger), which follow the configured level, and the request
// trace logger (NewDebugLogger), which is switched on and off by the
// connection's debug flag alone.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns component logging off.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel `yaml:"level"`

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool `yaml:"pretty"`

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a LogLevel to a zerolog.Level. An empty level is Info.
func ParseLevel(level LogLevel) (zerolog.Level, error) {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}


// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key)
//   - Worker start/stop inside a paged fetch
//
// Info: Normal operation events
//   - Paged fetch start/completion
//   - Security token acquired
//
// Warn: Warning conditions that don't prevent operation
//   - Warnings reported inside a result envelope
//   - Token endpoint not supported (HTTP 404/500)
//   - TLS verification disabled
//   - Cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Failed requests
//   - Aborted paged fetches
//
// Request traces are not part of these levels: they go to the debug logger
// from NewDebugLogger and are only written when debug tracing is enabled.
//
// Context Fields:
//   - url: request URL
//   - method: HTTP method
//   - status: HTTP status code
//   - duration: request duration
//   - error_class: network, client, server, malformed, remote, token
//   - page: page sequence number
//   - worker_id: scheduler worker index
//   - request_id: X-Request-ID sent with the request
