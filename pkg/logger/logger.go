// Package logger holds the process-wide structured logger. Call Init once at
// startup; Get returns the same logger from anywhere after that.
package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	instance zerolog.Logger
	once     sync.Once
	ready    bool
)

// Init builds the singleton. level is one of trace, debug, info, warn, error
// (anything else falls back to info). pretty switches from JSON to a colored
// console writer for local development. Repeated calls are no-ops.
func Init(level string, pretty bool) zerolog.Logger {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano

		lvl := parseLevel(level)
		zerolog.SetGlobalLevel(lvl)

		base := zerolog.New(os.Stdout)
		if pretty {
			base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		}
		instance = base.Level(lvl).With().Timestamp().Caller().Logger()
		ready = true
	})
	return instance
}

// Get returns the singleton logger. Panics when Init was never called; a
// silent default here would hide a misconfigured startup path.
func Get() zerolog.Logger {
	if !ready {
		panic("logger: Get called before Init")
	}
	return instance
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
