// Package log provides the package-level zap logger used across the service.
package log

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	sugar        atomic.Pointer[zap.SugaredLogger]
	fallbackOnce sync.Once
)

// Init initializes the package-level logger.
func Init(debug bool) error {
	var (
		zapLogger *zap.Logger
		err       error
	)

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	sugar.Store(zapLogger.Sugar())
	return nil
}

func logger() *zap.SugaredLogger {
	if l := sugar.Load(); l != nil {
		return l
	}
	// Tests and tools that never call Init still get output.
	fallbackOnce.Do(func() {
		zapLogger, err := zap.NewDevelopment(zap.AddCallerSkip(1))
		if err != nil {
			zapLogger = zap.NewNop()
		}
		sugar.CompareAndSwap(nil, zapLogger.Sugar())
	})
	return sugar.Load()
}

// Sync flushes any buffered log entries.
func Sync() {
	if l := sugar.Load(); l != nil {
		_ = l.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	logger().Debugf(template, args...)
}

func Infof(template string, args ...interface{}) {
	logger().Infof(template, args...)
}

func Warnf(template string, args ...interface{}) {
	logger().Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	logger().Errorf(template, args...)
}

func Fatalf(template string, args ...interface{}) {
	logger().Fatalf(template, args...)
}
