// Package logger provides a process-wide structured logger.
package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger with a JSON handler writing to
// os.Stdout. It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		defaultLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		defaultLogger.Info().Msg("logger initialized")
	})
}

// Get returns the initialized default logger.
func Get() *zerolog.Logger {
	Init()
	return &defaultLogger
}

// SetLevel adjusts the global minimum log level.
func SetLevel(level string) {
	Init()
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Info logs an informational message using the default logger.
func Info(msg string, kv ...any) {
	event := Get().Info()
	logFields(event, kv)
	event.Msg(msg)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, kv ...any) {
	event := Get().Warn()
	logFields(event, kv)
	event.Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, kv ...any) {
	event := Get().Error()
	if err != nil {
		event = event.Err(err)
	}
	logFields(event, kv)
	event.Msg(msg)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, kv ...any) {
	event := Get().Debug()
	logFields(event, kv)
	event.Msg(msg)
}

// logFields appends alternating key/value pairs to a zerolog event.
func logFields(event *zerolog.Event, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		event.Interface(key, kv[i+1])
	}
}
