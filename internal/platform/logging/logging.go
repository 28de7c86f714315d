// Package logging builds the process logger. Output always goes to stdout;
// when a log file is configured it is also written there with size-based
// rotation.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/clinicops/clinic/internal/config"
)

// Options selects the sinks and format of the logger.
type Options struct {
	Level      string
	Format     string // json or console
	Env        string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// OptionsFromConfig maps the service configuration onto logger options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Env:        cfg.Env,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}
}

// New returns the logger and a closer for the file sink. The closer is a
// no-op when no file is configured.
func New(opts Options) (zerolog.Logger, io.Closer) {
	return build(os.Stdout, opts)
}

func build(stdout io.Writer, opts Options) (zerolog.Logger, io.Closer) {
	var console io.Writer = stdout
	if useConsole(opts) {
		console = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		// the file sink is always JSON so it can be shipped
		writers = append(writers, file)
		closer = file
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Str("service", "clinic").
		Logger()
	return logger, closer
}

func useConsole(opts Options) bool {
	switch strings.ToLower(opts.Format) {
	case "console":
		return true
	case "json":
		return false
	}
	return opts.Env == "development"
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
