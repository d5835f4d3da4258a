// Package logger configures the process-wide zerolog instance. Components
// of the integrity engine derive child loggers from it with a "component"
// field, so one attempt's guard decisions can be followed across the
// service, tracker, limiter, and workers.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root logger from LOG_LEVEL and LOG_FORMAT. "pretty"
// writes a console-friendly stream for development; anything else emits
// JSON lines. Unparseable levels fall back to info.
func Setup(level, format string) zerolog.Logger {
	var writer io.Writer

	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	} else {
		writer = os.Stdout
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}
