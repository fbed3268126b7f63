// Package logger configures the global zerolog logger shared by all components.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global logger exactly once. An empty level falls
// back to the LOG_LEVEL environment variable, then to info.
func Configure(level string, output io.Writer) {
	once.Do(func() {
		parsed := zerolog.InfoLevel
		if level == "" {
			level = os.Getenv("LOG_LEVEL")
		}
		if level != "" {
			if lvl, err := zerolog.ParseLevel(level); err == nil {
				parsed = lvl
			}
		}
		zerolog.SetGlobalLevel(parsed)
		zerolog.TimeFieldFormat = time.RFC3339

		if output == nil {
			output = os.Stdout
		}

		base = zerolog.New(output).With().
			Timestamp().
			Str("service", "scribe").
			Logger()
	})
}

// Base returns the configured base logger.
func Base() zerolog.Logger {
	Configure("", nil)
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}
