// Package logging builds the zap diagnostic logger for configtrack and hands out
// per-subsystem loggers. Diagnostic logs go to stderr (and an optional file);
// the operator-facing live console is separate and lives in package console.
package logging

import (
	"fmt"
	"strings"
	"time"

	"configtrack/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // startup, config resolution
	CategoryBrowser Category = "browser" // Chrome launch, CDP pumps
	CategoryCapture Category = "capture" // classification, downloads, dispatch
	CategorySession Category = "session" // controller state machine, flush
	CategoryArchive Category = "archive" // session history database
)

// New builds the root logger from config. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	var zcfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case "json":
		zcfg = zap.NewProductionConfig()
	case "", "console", "text":
		zcfg = zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level := ParseLevel(cfg.Level)
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.File)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ParseLevel converts "debug", "info", "warn", "error" to a zap level.
// Unknown strings default to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// For returns the named logger of a category, or a no-op logger when the
// category is switched off in config.
func For(base *zap.Logger, cfg config.LoggingConfig, category Category) *zap.Logger {
	if base == nil || !cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return base.Named(string(category))
}

// Timer measures one operation.
type Timer struct {
	logger *zap.Logger
	op     string
	start  time.Time
}

// StartTimer begins timing an operation.
func StartTimer(logger *zap.Logger, operation string) *Timer {
	return &Timer{logger: logger, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Debug(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		t.logger.Warn(t.op+" slow", zap.Duration("elapsed", elapsed), zap.Duration("threshold", threshold))
	} else {
		t.logger.Debug(t.op+" completed", zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
