package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger.
// KIOSK_LOG_LEVEL overrides level: trace, debug, info, warn, error (default: info)
func Init(level string) {
	InitWriter(os.Stderr, level)
}

// InitWriter is Init with a custom console destination.
func InitWriter(w io.Writer, level string) {
	if env := os.Getenv("KIOSK_LOG_LEVEL"); env != "" {
		level = env
	}
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
