// Package logging decouples the application from a concrete logging
// framework. Components receive a Logger and never import logrus directly.
package logging

// Field is a key-value pair attached to a structured log message.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the structured logging interface used throughout docledger.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError returns a logger with an error field attached.
	WithError(err error) Logger
	// WithField returns a logger with a single field attached.
	WithField(key string, value interface{}) Logger
}

var defaultLogger Logger = NewLogrusAdapter("info", "text")

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	return defaultLogger
}

// SetDefault replaces the process-wide default logger. A nil logger is
// ignored.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}
