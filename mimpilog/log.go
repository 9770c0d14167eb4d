// Package mimpilog provides the structured logger used by the mimpirun
// launcher and by runtime diagnostics outside the Send/Recv hot path. The
// library never logs per message: the launcher logs each child's start and
// exit, and the runtime logs only peer-close and deadlock-detection events
// (from the receiver goroutines and from Recv's deadlock branch).
package mimpilog

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-friendly zerolog.Logger writing to w (os.Stderr in
// normal operation), tagged with the given rank so that interleaved output
// from several forked processes can be told apart.
func New(w io.Writer, rank int) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	logger := zerolog.New(console).With().Timestamp().Logger()
	if rank >= 0 {
		logger = logger.With().Int("rank", rank).Logger()
	}
	return logger
}

// Discard returns a logger that drops everything. Init installs it as every
// Runtime's logger (Init has no option that enables runtime logging), and
// the tests do the same, so the runtime's own log events produce no output.
func Discard() zerolog.Logger {
	return zerolog.New(io.Discard)
}
