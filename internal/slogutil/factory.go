package slogutil

import (
	"io"
	"log/slog"
	"os"

	"busrisk/internal/config"
)

// LoggerFactory builds the loggers of one CLI invocation.
// Precedence for the console level: CLI flags > config > warn.
type LoggerFactory struct {
	config   *config.Config
	cliLevel *slog.Level
	console  io.Writer
	closers  []io.Closer
}

// NewLoggerFactory creates a logger factory. cliLevel is nil when no
// verbosity flag was given.
func NewLoggerFactory(cfg *config.Config, cliLevel *slog.Level, console io.Writer) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if console == nil {
		console = os.Stderr
	}
	return &LoggerFactory{config: cfg, cliLevel: cliLevel, console: console}
}

// ConsoleLevel returns the effective console level
func (f *LoggerFactory) ConsoleLevel() slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelWarn
}

// ConsoleLogger logs to the console writer. The "json" logging format
// switches to slog's JSON handler for machine consumption.
func (f *LoggerFactory) ConsoleLogger() *slog.Logger {
	return slog.New(f.consoleHandler())
}

// RunLogger logs to the console and, at debug level, to logPath.
// If the file cannot be created the console logger is returned alone.
func (f *LoggerFactory) RunLogger(logPath string) *slog.Logger {
	console := f.consoleHandler()

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		logger := slog.New(console)
		logger.Warn("Run log unavailable", "path", logPath, "error", err.Error())
		return logger
	}
	f.closers = append(f.closers, file)

	return slog.New(NewTeeHandler(console, NewHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func (f *LoggerFactory) consoleHandler() slog.Handler {
	opts := &slog.HandlerOptions{Level: f.ConsoleLevel()}
	if f.config.Logging.Format == "json" {
		return slog.NewJSONHandler(f.console, opts)
	}
	return NewHandler(f.console, opts)
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
