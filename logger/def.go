package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
)

// Init builds the process logger. Debug selects the console-friendly
// development encoder, otherwise JSON production output is used.
func Init(debug bool, opts ...zap.Option) error {
	if debug {
		return InitDevelopment(opts...)
	}
	return InitProduction(opts...)
}

func InitProduction(opts ...zap.Option) error {
	cfg := zap.NewProductionConfig()
	return build(cfg, opts...)
}

func InitDevelopment(opts ...zap.Option) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return build(cfg, opts...)
}

func build(cfg zap.Config, opts ...zap.Option) error {
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(opts...)
	if err != nil {
		return err
	}
	setLogger(l)
	return nil
}

// Use installs an already-built logger, e.g. an observer core in tests.
func Use(l *zap.Logger) {
	setLogger(l)
}

func setLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
}

// Log returns the process logger, or zap's global (a no-op until Init).
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// Sync flushes buffered entries.
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
