package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

var (
	// InfoLogger for standard, non-error messages.
	InfoLogger = newLogger(os.Stdout)
	// ErrorLogger for error messages.
	ErrorLogger = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// SetOutput redirects both loggers to w. Tests use it to silence or capture output.
func SetOutput(w io.Writer) {
	InfoLogger = newLogger(w)
	ErrorLogger = newLogger(w)
}

// SetLevel sets the global minimum level, e.g. "debug", "info", "warn".
// An unknown level leaves the current one in place and returns the parse error.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
