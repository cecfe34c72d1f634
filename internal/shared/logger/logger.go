package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New initializes the root logger on stderr, leaving stdout to command output.
// devMode selects the human-readable console writer; verbose enables debug
// events such as per-request traces.
func New(devMode, verbose bool) zerolog.Logger {
	return newWithWriter(os.Stderr, devMode, verbose)
}

func newWithWriter(out io.Writer, devMode, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	if devMode {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "microstudio").Logger()
}
