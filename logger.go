package linesock

import "log/slog"

// Logger is the interface for structured logging.
// It is designed to be compatible with *slog.Logger from the standard library.
// Applications can provide their own implementation or use the default slog logger.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

// connLogger prefixes every entry with the connection's identifying fields.
type connLogger struct {
	Logger
	fields []any
}

func newConnLogger(l Logger, fields ...any) Logger {
	return &connLogger{Logger: l, fields: fields}
}

func (l *connLogger) with(args []any) []any {
	out := make([]any, 0, len(l.fields)+len(args))
	out = append(out, l.fields...)
	return append(out, args...)
}

func (l *connLogger) Debug(msg string, args ...any) { l.Logger.Debug(msg, l.with(args)...) }
func (l *connLogger) Info(msg string, args ...any)  { l.Logger.Info(msg, l.with(args)...) }
func (l *connLogger) Warn(msg string, args ...any)  { l.Logger.Warn(msg, l.with(args)...) }
func (l *connLogger) Error(msg string, args ...any) { l.Logger.Error(msg, l.with(args)...) }
