// Package logging builds the node's zerolog.Logger from CLI verbosity and
// timestamp-format flags, with optional rotated file output.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction, driven directly by the CLI flags
// in spec §6: -q, -v/-vv/-vvv, -t.
type Config struct {
	// Quiet disables all logging output (-q).
	Quiet bool

	// Verbosity is the count of -v flags (0 to 3).
	Verbosity int

	// TimestampFormat is one of "sec", "ms", "ns", "none" (-t).
	TimestampFormat string

	// FilePath, if set, additionally writes rotated logs via lumberjack.
	FilePath string
}

// New builds a zerolog.Logger for cfg, writing to stderr (unless quiet)
// and optionally to a rotating file, through a diode async writer so a
// slow sink never blocks the node's hot paths.
func New(cfg Config) zerolog.Logger {
	level := levelFor(cfg.Quiet, cfg.Verbosity)

	var writers []io.Writer
	if !cfg.Quiet {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05.000",
		})
	}
	if cfg.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		})
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	writer = diode.NewWriter(writer, 1000, 10*time.Millisecond, func(missed int) {
		fmt.Fprintf(os.Stderr, "logging: dropped %d messages\n", missed)
	})

	builder := zerolog.New(writer).Level(level).With()
	builder = applyTimestampFormat(builder, cfg.TimestampFormat)

	return builder.Logger()
}

func levelFor(quiet bool, verbosity int) zerolog.Level {
	if quiet {
		return zerolog.Disabled
	}
	switch {
	case verbosity >= 3:
		return zerolog.TraceLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	default:
		return zerolog.WarnLevel
	}
}

func applyTimestampFormat(builder zerolog.Context, format string) zerolog.Context {
	switch format {
	case "none":
		return builder
	case "sec":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "ms":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	case "ns", "":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixNano
	default:
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixNano
	}
	return builder.Timestamp()
}
