package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
)

// Config selects the log level, format and optional sentry reporting.
type Config struct {
	// Verbosity is 0=fatal 1=error 2=warn 3=info 4=debug 5=trace.
	Verbosity int
	// Format is "text" or "json".
	Format string
	// Color forces colored text output. Without it the formatter decides.
	Color bool
	// SentryDSN enables reporting of errors to sentry when non-empty.
	SentryDSN string
}

// DefaultConfig returns the info-level text logger config.
func DefaultConfig() Config {
	return Config{
		Verbosity: 3,
		Format:    "text",
	}
}

var levels = []logrus.Level{
	logrus.FatalLevel,
	logrus.ErrorLevel,
	logrus.WarnLevel,
	logrus.InfoLevel,
	logrus.DebugLevel,
	logrus.TraceLevel,
}

// New builds the root logger writing to stderr.
func New(cfg Config) (*logrus.Logger, error) {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput is New writing to out.
func NewWithOutput(cfg Config, out io.Writer) (*logrus.Logger, error) {
	if cfg.Verbosity < 0 || cfg.Verbosity >= len(levels) {
		return nil, fmt.Errorf("verbosity %d out of range 0..%d", cfg.Verbosity, len(levels)-1)
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(levels[cfg.Verbosity])

	switch cfg.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			ForceColors:   cfg.Color,
			DisableColors: !cfg.Color,
			FullTimestamp: true,
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		log.AddHook(hook)
	}
	return log, nil
}
