package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Level zerolog.Level

const (
	DebugLevel = Level(zerolog.DebugLevel)
	InfoLevel  = Level(zerolog.InfoLevel)
	WarnLevel  = Level(zerolog.WarnLevel)
)

func (l Level) toZerolog() zerolog.Level {
	return zerolog.Level(l)
}

func (l Level) String() string {
	return l.toZerolog().String()
}

// Setup installs the global logger on stderr, leaving stdout to command
// output. Debug level gets a human readable console writer, every other level
// writes JSON lines.
func Setup(level Level) {
	var writer io.Writer = os.Stderr
	if level.toZerolog() <= zerolog.DebugLevel {
		writer = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.RFC3339
		})
	}
	SetupWriter(level, writer)
}

func SetupWriter(level Level, writer io.Writer) {
	zerolog.SetGlobalLevel(level.toZerolog())
	log.Logger = zerolog.
		New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

// ParseLevel falls back to info for anything zerolog does not know.
func ParseLevel(lvl string) Level {
	parsed, err := ParseLevelStrict(lvl)
	if err != nil {
		return InfoLevel
	}
	return parsed
}

func ParseLevelStrict(lvl string) (Level, error) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(lvl)))
	if err != nil {
		return InfoLevel, errors.Wrapf(err, "parse log level %q", lvl)
	}
	if parsed == zerolog.NoLevel {
		return InfoLevel, nil
	}
	return Level(parsed), nil
}
