package shim

import (
	"sync"

	"go.uber.org/zap"
)

// Package fallback logger. Contexts built without WithLogger pick it
// up in NewCtx.
var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package fallback logger, a nop unless SetLogger
// was called first.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l as the fallback. Contexts capture the logger at
// construction, so call this before NewCtx.
func SetLogger(l *zap.Logger) {
	logger = l
}
