package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates a structured logger for Loki-compatible JSON output,
// or a human-readable console writer when format is "pretty".
//
// Example:
//
//	logger := logging.NewLogger("info", "json")
//	logger.Info().
//	    Str("component", "registry").
//	    Int("connections", 100).
//	    Msg("Registry snapshot")
func NewLogger(levelName, format string) zerolog.Logger {
	var level zerolog.Level
	switch levelName {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "sse-gateway").
		Logger()
}
