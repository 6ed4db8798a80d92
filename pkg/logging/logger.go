// Package logging configures zerolog for uncover binaries and hands out
// component loggers.
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
	// LevelDebug logs queue and lane decisions and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs query changes, resets and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs failed fetches and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. Unknown levels fall back to info.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05.000"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Nop returns a pointer to a disabled logger, for the Logger fields of
// package configs.
func Nop() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// Log Level Guidelines:
//
// Debug: queue and lane decisions
//   - Enqueue, dispatch, dedupe and eviction of page requests
//   - Stale responses dropped after a reset
//   - Page cache hit/miss
//
// Info: normal operation events
//   - Query changes and model resets
//   - State restored from a blob
//   - Server startup/shutdown
//
// Warn: conditions that don't prevent operation
//   - Failed page fetches and panics in a data source
//   - State decode failures
//   - Error budget throttling
//
// Error: conditions requiring attention
//   - Error budget exhausted
//   - Configuration errors
//
// Context Fields:
//   - page, from, to: the page and its range
//   - lane, generation: where and in which epoch a request runs
//   - queue_depth: pending requests not yet dispatched
//   - query: the active query
//   - duration: fetch duration
//   - error_class: client, server, rate_limit, network
