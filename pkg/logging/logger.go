package logging

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger is a wrapper around the log.Logger from the charmbracelet/log package.
type Logger struct {
	*log.Logger
	// Buffer captures output for loggers built by NewTestLogger.
	Buffer *bytes.Buffer
}

var (
	logger *Logger
	once   sync.Once
	mu     sync.RWMutex
)

// New builds a logger writing to w. Debug turns on caller reporting,
// timestamps and the debug level.
func New(w io.Writer, debug bool) *Logger {
	if !debug {
		base := log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
		})
		base.SetLevel(log.InfoLevel)
		return &Logger{Logger: base}
	}

	base := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "peerlink",
	})
	base.SetLevel(log.DebugLevel)
	return &Logger{Logger: base}
}

// CreateLogger sets up the package logger. DEBUG=1 enables debug output.
func CreateLogger() {
	once.Do(func() {
		l := New(os.Stderr, os.Getenv("DEBUG") == "1")
		mu.Lock()
		if logger == nil {
			logger = l
		}
		mu.Unlock()
	})
}

// NewTestLogger returns a debug-level logger writing into an in-memory buffer.
func NewTestLogger() *Logger {
	buf := &bytes.Buffer{}
	base := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
	return &Logger{Logger: base, Buffer: buf}
}

// GetOutput returns everything written to a test logger.
func (l *Logger) GetOutput() string {
	if l.Buffer == nil {
		return ""
	}
	return l.Buffer.String()
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...), Buffer: l.Buffer}
}

// SetLogger replaces the package logger.
func SetLogger(l *Logger) {
	ensureInitialized()
	mu.Lock()
	logger = l
	mu.Unlock()
}

// GetLogger returns the Logger instance.
func GetLogger() *Logger {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs debug messages if debug logging is enabled.
func Debug(msg interface{}, keyvals ...interface{}) {
	GetLogger().Debug(msg, keyvals...)
}

// Info logs informational messages.
func Info(msg interface{}, keyvals ...interface{}) {
	GetLogger().Info(msg, keyvals...)
}

// Warn logs warning messages.
func Warn(msg interface{}, keyvals ...interface{}) {
	GetLogger().Warn(msg, keyvals...)
}

// Error logs error messages.
func Error(msg interface{}, keyvals ...interface{}) {
	GetLogger().Error(msg, keyvals...)
}

// Fatal logs a fatal message and exits the program.
func Fatal(msg interface{}, keyvals ...interface{}) {
	GetLogger().Fatal(msg, keyvals...)
}

func ensureInitialized() {
	CreateLogger()
}
