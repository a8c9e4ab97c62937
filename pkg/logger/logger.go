// backend-go/pkg/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	Configure("", FormatConsole, os.Stdout)
}

// Configure rebuilds the process logger. An empty or unknown level means info; format
// is "console" (human readable) or "json" (one object per line, for log collectors).
// The zerolog/log global used by the internal packages follows the same settings.
func Configure(level, format string, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}

	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}

	if !strings.EqualFold(format, FormatJSON) {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	zerolog.SetGlobalLevel(parsed)
	Log = zerolog.New(out).
		Level(parsed).
		With().
		Timestamp().
		Caller().
		Logger()
	log.Logger = Log

	if err != nil && level != "" {
		Log.Warn().Str("level", level).Msg("invalid log level, defaulting to info")
	}
}
