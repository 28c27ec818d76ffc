package logging

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitGlobalLogger installs the process-wide logger. format "json" always writes
// JSON; otherwise a terminal stdout gets the console writer.
func InitGlobalLogger(level LogLevel, format string) *Logger {
	var output io.Writer = os.Stdout
	if format != "json" && isTerminal(os.Stdout) {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	logger := NewLogger(level, output)
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
	return logger
}

// GetGlobalLogger returns the process-wide logger, creating an info logger on first use
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(InfoLevel, os.Stdout)
	}
	return globalLogger
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// WithModule returns a global child logger tagged with module
func WithModule(module string) *zerolog.Logger {
	return GetGlobalLogger().module(module)
}

// WithLibrary returns a global child logger tagged with a library root
func WithLibrary(root string) *zerolog.Logger {
	logger := GetGlobalLogger().logger.With().Str("library", root).Logger()
	return &logger
}

// WithError returns a global child logger carrying err
func WithError(err error) *zerolog.Logger {
	logger := GetGlobalLogger().logger.With().Err(err).Logger()
	return &logger
}
