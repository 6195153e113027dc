package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Call Init once at startup before use.
var Logger zerolog.Logger

// Init configures the global logger for one service. LOG_LEVEL selects the
// minimum level (default info); LOG_FORMAT=console switches the default JSON
// output to human-readable lines for local runs.
func Init(serviceName string) {
	Logger = newLogger(os.Stderr, serviceName, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	zerolog.SetGlobalLevel(Logger.GetLevel())
}

func newLogger(w io.Writer, serviceName, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// WithJobID tags log lines with a queued job's correlation id.
func WithJobID(jobID string) *zerolog.Logger {
	l := Logger.With().Str("job_id", jobID).Logger()
	return &l
}

// WithCorrelationID tags log lines with an inbound request's correlation id.
func WithCorrelationID(correlationID string) *zerolog.Logger {
	l := Logger.With().Str("correlation_id", correlationID).Logger()
	return &l
}

// WithEvent tags log lines with the group and actor of one chat event.
func WithEvent(groupID, actorID string) *zerolog.Logger {
	l := Logger.With().Str("group_id", groupID).Str("actor_id", actorID).Logger()
	return &l
}
