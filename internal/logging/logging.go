// Package logging provides per-module zap loggers carried on the context.
package logging

import (
	"context"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logger type used throughout the codebase.
type Logger = *zap.SugaredLogger

// LoggerFactory returns a logger for a given module.
type LoggerFactory func(module string) Logger

type contextKey string

const loggerKey contextKey = "logger"

//nolint:gochecknoglobals
var nullLogger = zap.NewNop().Sugar()

// NullLogger returns a logger that discards all messages.
func NullLogger() Logger {
	return nullLogger
}

// WithLogger returns a derived context with associated logger factory.
func WithLogger(ctx context.Context, l LoggerFactory) context.Context {
	if l == nil {
		l = func(string) Logger { return nullLogger }
	}

	return context.WithValue(ctx, loggerKey, l)
}

// Module returns a function that gets the logger for the given module from the context.
// When the context carries no logger, messages are discarded.
func Module(module string) func(ctx context.Context) Logger {
	return func(ctx context.Context) Logger {
		if f, ok := ctx.Value(loggerKey).(LoggerFactory); ok {
			return f(module)
		}

		return nullLogger
	}
}

// Options configures loggers returned by NewFactory.
type Options struct {
	Level      zapcore.Level
	JSON       bool
	Timestamps bool
}

// NewFactory returns a LoggerFactory that writes entries of a given level or above to w.
func NewFactory(w io.Writer, opt Options) LoggerFactory {
	ec := zapcore.EncoderConfig{
		TimeKey:        zapcore.OmitKey,
		LevelKey:       "l",
		NameKey:        "n",
		MessageKey:     "m",
		StacktraceKey:  "s",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	if opt.Timestamps {
		ec.TimeKey = "t"
	}

	var enc zapcore.Encoder
	if opt.JSON {
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		enc = zapcore.NewConsoleEncoder(ec)
	}

	root := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), opt.Level)).Sugar()

	return func(module string) Logger {
		return root.Named(module)
	}
}

// ToWriter returns a LoggerFactory that writes plain messages of all levels to w.
func ToWriter(w io.Writer) LoggerFactory {
	l := zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey: "m",
			LineEnding: zapcore.DefaultLineEnding,
		}),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)).Sugar()

	return func(string) Logger {
		return l
	}
}
