package core

import (
	"go.uber.org/zap"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior; the default one writes to zap.
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// ZapLogger adapts a *zap.Logger to Logger.
// A nil inner logger resolves to zap.L() on every call so that
// zap.ReplaceGlobals takes effect after construction.
type ZapLogger struct {
	l *zap.Logger
}

// NewZapLogger wraps l. Passing nil follows the global zap logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{l: l}
}

// NewDefaultLogger returns a logger backed by the global zap logger.
func NewDefaultLogger() *ZapLogger {
	return &ZapLogger{}
}

func (l *ZapLogger) logger() *zap.Logger {
	if l.l != nil {
		return l.l
	}
	return zap.L()
}

// Debug logs a debug message
func (l *ZapLogger) Debug(msg string, fields ...Field) {
	l.logger().Debug(msg, zapFields(fields)...)
}

// Info logs an info message
func (l *ZapLogger) Info(msg string, fields ...Field) {
	l.logger().Info(msg, zapFields(fields)...)
}

// Warn logs a warning message
func (l *ZapLogger) Warn(msg string, fields ...Field) {
	l.logger().Warn(msg, zapFields(fields)...)
}

// Error logs an error message
func (l *ZapLogger) Error(msg string, fields ...Field) {
	l.logger().Error(msg, zapFields(fields)...)
}

func zapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
