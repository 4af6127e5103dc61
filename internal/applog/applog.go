// Package applog configures the package-level structured logger used by
// the bridge daemon, the way cuemby/warren's pkg/log package configures
// zerolog: a package-level zerolog.Logger, level from config, console vs
// JSON writer (SPEC_FULL.md §9 "Logging").
package applog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-level logger every other package logs through.
// Configure replaces it; until Configure is called it defaults to a
// console writer at info level, matching the teacher's "sane default
// before explicit setup" behaviour.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	Level(zerolog.InfoLevel).With().Timestamp().Logger()

// Options configures Configure.
type Options struct {
	Level  string // "debug", "info", "warn", "error"; default "info"
	JSON   bool   // true selects a JSON writer instead of the console writer
	Output io.Writer
}

// Configure rebuilds the package-level Logger from opts. The bridge daemon
// calls this once at startup (headless, no human reading stdout live); the
// teamctl CLI leaves the console default in place for its human-facing
// commands (SPEC_FULL.md §9).
func Configure(opts Options) {
	level := parseLevel(opts.Level)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var writer io.Writer
	if opts.JSON {
		writer = out
	} else {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithTeamWorker returns a child logger pre-populated with the team/worker
// fields every bridge log line carries.
func WithTeamWorker(team, worker string) zerolog.Logger {
	return Logger.With().Str("team", team).Str("worker", worker).Logger()
}
