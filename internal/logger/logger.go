// Package logger provides verbose logging for the clinitrace CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to help users follow the ingestion pipeline.
// Errors are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	base              = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}).With().Timestamp().Logger()
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = newLogger(w)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	emit(zerolog.DebugLevel, nil, format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	emit(zerolog.InfoLevel, nil, format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	emit(zerolog.WarnLevel, nil, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	emit(zerolog.ErrorLevel, nil, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Entry is a logger carrying key/value fields.
type Entry struct {
	fields map[string]any
}

// With starts an entry carrying one field.
func With(key string, value any) Entry {
	return Entry{fields: map[string]any{key: value}}
}

// With returns a copy of the entry with one more field.
func (e Entry) With(key string, value any) Entry {
	fields := make(map[string]any, len(e.fields)+1)
	for k, v := range e.fields {
		fields[k] = v
	}
	fields[key] = value
	return Entry{fields: fields}
}

// Debug prints a message with the entry's fields if verbose mode is enabled.
func (e Entry) Debug(format string, args ...any) {
	emit(zerolog.DebugLevel, e.fields, format, args...)
}

// Info prints a message with the entry's fields if verbose mode is enabled.
func (e Entry) Info(format string, args ...any) {
	emit(zerolog.InfoLevel, e.fields, format, args...)
}

// Warn prints a warning with the entry's fields if verbose mode is enabled.
func (e Entry) Warn(format string, args ...any) {
	emit(zerolog.WarnLevel, e.fields, format, args...)
}

// Error prints an error with the entry's fields.
func (e Entry) Error(format string, args ...any) {
	emit(zerolog.ErrorLevel, e.fields, format, args...)
}

func emit(level zerolog.Level, fields map[string]any, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose && level < zerolog.ErrorLevel {
		return
	}
	ev := base.WithLevel(level)
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msgf(format, args...)
}
