package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// base is the logger every child derives from. It starts as a no-op so
// that embedding a cache stays silent until the host opts into logging
// via Init.
var base = zerolog.Nop()

// Config holds logging configuration
type Config struct {
	// Level is a zerolog level name ("trace", "debug", "info", "warn",
	// "error"); empty selects "info"
	Level string

	// Console switches from JSON to human-readable console output
	Console bool

	// Output receives the log stream; nil selects stderr
	Output io.Writer
}

// Init builds the base logger all caches and workers derive from. It
// may be called again to reconfigure; children created earlier keep
// their previous destination.
func Init(cfg Config) error {
	levelName := cfg.Level
	if levelName == "" {
		levelName = zerolog.LevelInfoValue
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Console {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	base = zerolog.New(output).Level(level).With().Timestamp().Logger()
	return nil
}

// Base returns the current base logger
func Base() zerolog.Logger {
	return base
}

// WithCache creates a child logger carrying the cache name; every
// pipeline worker of that cache logs through it
func WithCache(cacheName string) zerolog.Logger {
	return base.With().Str("cache", cacheName).Logger()
}

// WithComponent creates a child logger carrying a component field for
// pieces that exist outside a single cache (config watcher, dispatcher)
func WithComponent(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
