// Package log configures the process-wide zerolog logger. Services log
// through the zerolog global (rs/zerolog/log) directly.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Unknown levels fall back to
// info. With pretty enabled, output goes through the console writer.
func Setup(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zlog := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	if pretty {
		zlog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(lvl).
			With().
			Timestamp().
			Logger()
	}

	log.Logger = zlog
	zerolog.SetGlobalLevel(lvl)
}
