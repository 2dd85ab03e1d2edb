// Package observability sets up logging and Prometheus collectors for OSCORE
// endpoints.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the process logger and installs it as the zerolog global.
// An empty or unknown level selects info.
func InitLogger(app, level string) zerolog.Logger {
	return newLogger(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, app, level)
}

// InitJSONLogger is InitLogger with line-delimited JSON output.
func InitJSONLogger(w io.Writer, app, level string) zerolog.Logger {
	return newLogger(w, app, level)
}

func newLogger(w io.Writer, app, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
