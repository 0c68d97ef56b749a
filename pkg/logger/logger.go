// Package logger provides the process-wide structured logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar = zap.NewNop().Sugar()
	mu    sync.RWMutex
)

// Config controls logger output.
type Config struct {
	Debug  bool   // Enable debug level logging
	Format string // "json" or "console"
	File   string // Log file path; empty logs to stderr
}

// DefaultConfig returns console logging to stderr at info level.
func DefaultConfig() Config {
	return Config{Format: "console"}
}

// Init replaces the global logger. Until Init is called, logging is a no-op.
func Init(cfg Config) error {
	var zapConfig zap.Config
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zapConfig.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		zapConfig.OutputPaths = []string{cfg.File}
	}

	if cfg.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	l, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
	return nil
}

// Close flushes buffered entries and restores the no-op logger.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	_ = sugar.Sync()
	sugar = zap.NewNop().Sugar()
}

// L returns the current sugared logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// With returns a logger with a field added to every entry.
func With(key string, value interface{}) *zap.SugaredLogger {
	return L().With(key, value)
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	L().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	L().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	L().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	L().Warnf(format, v...)
}
