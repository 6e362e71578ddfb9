package cli

import (
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"github.com/dmstat/dmstat/internal/logging"
)

type loggingFlags struct {
	logLevel      string
	logFormat     string
	logFile       string
	logTimestamps bool
}

func (c *loggingFlags) setup(svc appServices, app *kingpin.Application) {
	app.Flag("log-level", "Console log level").Envar(svc.EnvName("DMSTAT_LOG_LEVEL")).Default("info").EnumVar(&c.logLevel, "debug", "info", "warn", "error")
	app.Flag("log-format", "Log format").Envar(svc.EnvName("DMSTAT_LOG_FORMAT")).Default("console").EnumVar(&c.logFormat, "console", "json")
	app.Flag("log-file", "Write logs to a file instead of standard error").Envar(svc.EnvName("DMSTAT_LOG_FILE")).StringVar(&c.logFile)
	app.Flag("log-timestamps", "Include timestamps in logs").Envar(svc.EnvName("DMSTAT_LOG_TIMESTAMPS")).BoolVar(&c.logTimestamps)
}

func (c *loggingFlags) loggerFactory(stderr io.Writer) (logging.LoggerFactory, error) {
	lvl, err := zapcore.ParseLevel(c.logLevel)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	w := stderr

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec
		if err != nil {
			return nil, errors.Wrap(err, "unable to open log file")
		}

		w = f
	}

	return logging.NewFactory(w, logging.Options{
		Level:      lvl,
		JSON:       c.logFormat == "json",
		Timestamps: c.logTimestamps,
	}), nil
}
