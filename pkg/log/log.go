// Package log provides the zerolog-based package logger used across hsmatch.
// Until SetStd or Set is called, warnings and errors go to stderr as JSON.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu        sync.RWMutex
	pkgLogger = defaultLogger()
)

// defaultLogger reports release failures and leaked handles for callers that
// never configure logging.
func defaultLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
}

// SetStd routes logs to stderr through a console writer at the given level.
func SetStd(level zerolog.Level) {
	SetOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level)
}

// SetOutput routes logs to w at the given level.
func SetOutput(w io.Writer, level zerolog.Level) {
	Set(zerolog.New(w).Level(level).With().Timestamp().Logger())
}

// Set replaces the package logger.
func Set(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	pkgLogger = l
}

// Reset restores the default stderr logger.
func Reset() {
	Set(defaultLogger())
}

// Disable turns logging off.
func Disable() {
	Set(zerolog.Nop())
}

// Logger returns a copy of the package logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return pkgLogger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

func Debug() *zerolog.Event { l := Logger(); return l.Debug() }
func Info() *zerolog.Event  { l := Logger(); return l.Info() }
func Warn() *zerolog.Event  { l := Logger(); return l.Warn() }
func Error() *zerolog.Event { l := Logger(); return l.Error() }
