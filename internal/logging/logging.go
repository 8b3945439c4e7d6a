// Package logging builds the zap logger used across the executor, tool
// mediator, and config watcher, following the same production-config
// pattern the CLI entry point uses to build its root logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category groups related log sites so operators can silence a chatty area
// (e.g. tool-mediator HTTP traffic) without dropping execution-outcome logs.
type Category string

const (
	CategoryExecutor Category = "executor"
	CategoryTools    Category = "tools"
	CategoryConfig   Category = "config"
)

// New builds a production zap logger, switched to debug level when verbose
// is set.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// ForCategory returns a child logger tagged with its category, suppressed
// to zap.PanicLevel (effectively silent) when enabled is false.
func ForCategory(base *zap.Logger, cat Category, enabled bool) *zap.Logger {
	l := base.With(zap.String("category", string(cat)))
	if !enabled {
		return l.WithOptions(zap.IncreaseLevel(zapcore.PanicLevel))
	}
	return l
}
