package utils

import (
	"log"
	"os"
	"sync"
)

var (
	loggerMu sync.RWMutex
	logger   = log.New(os.Stderr, "aclkernel: ", log.LstdFlags)
)

// Logger returns the diagnostic stream used for warnings and build dumps
func Logger() *log.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the diagnostic stream and returns the previous one
func SetLogger(l *log.Logger) *log.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	prev := logger
	if l != nil {
		logger = l
	}
	return prev
}

// Warnf writes a warning line to the diagnostic stream
func Warnf(format string, args ...interface{}) {
	Logger().Printf("WARNING: "+format, args...)
}
