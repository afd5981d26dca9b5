package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger

// NewLogger constructs the process logger. Development gets a console writer
// at debug level, everything else JSON at info level.
func NewLogger(appEnv string) Logger {
	return NewLoggerTo(os.Stdout, appEnv)
}

// NewLoggerTo is NewLogger with an explicit sink.
func NewLoggerTo(w io.Writer, appEnv string) Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}

	if appEnv == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("env", appEnv).
		Logger()
}

// NopLogger discards everything; used where a logger is optional.
func NopLogger() Logger {
	return zerolog.New(io.Discard)
}

// Component returns a child logger tagged with the component name.
func Component(l Logger, name string) Logger {
	return l.With().Str("component", name).Logger()
}
