package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It discards everything until Setup
// runs, so botpack packages stay silent when embedded as a library.
var Logger = zerolog.Nop()

// Setup configures logging for a CLI invocation. Console output goes to
// stderr so stdout stays parseable; json switches to machine-readable
// lines for automation. Unknown level strings fall back to info.
func Setup(level string, json bool, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	w := out
	if !json {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// For returns a child logger scoped to one botpack component (fetch,
// store, sync, install, ...). Components add their own contextual fields
// (target, pkg_key, integrity) per event.
func For(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
