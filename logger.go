package threadlocal

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with storage-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithThread adds a thread identity field to the logger.
func (l *Logger) WithThread(id ThreadID) *Logger {
	return &Logger{
		Logger: l.Logger.With("thread", uint64(id)),
	}
}

// LogCreate logs a create operation.
func (l *Logger) LogCreate(id ThreadID, size int, err error) {
	if err != nil {
		l.Error("create failed",
			"thread", uint64(id),
			"size", size,
			"error", err,
		)
	} else {
		l.Debug("create completed",
			"thread", uint64(id),
			"size", size,
		)
	}
}

// LogRead logs a read operation.
func (l *Logger) LogRead(id ThreadID, offset, length int, err error) {
	if err != nil {
		l.Error("read failed",
			"thread", uint64(id),
			"offset", offset,
			"length", length,
			"error", err,
		)
	} else {
		l.Debug("read completed",
			"thread", uint64(id),
			"offset", offset,
			"length", length,
		)
	}
}

// LogWrite logs a write operation.
func (l *Logger) LogWrite(id ThreadID, offset, length, forked int, err error) {
	if err != nil {
		l.Error("write failed",
			"thread", uint64(id),
			"offset", offset,
			"length", length,
			"error", err,
		)
	} else {
		l.Debug("write completed",
			"thread", uint64(id),
			"offset", offset,
			"length", length,
			"pages_forked", forked,
		)
	}
}

// LogDestroy logs a destroy operation.
func (l *Logger) LogDestroy(id ThreadID, err error) {
	if err != nil {
		l.Error("destroy failed",
			"thread", uint64(id),
			"error", err,
		)
	} else {
		l.Debug("destroy completed",
			"thread", uint64(id),
		)
	}
}

// LogClone logs a clone operation.
func (l *Logger) LogClone(id, source ThreadID, err error) {
	if err != nil {
		l.Error("clone failed",
			"thread", uint64(id),
			"source", uint64(source),
			"error", err,
		)
	} else {
		l.Debug("clone completed",
			"thread", uint64(id),
			"source", uint64(source),
		)
	}
}

// LogFault logs a classified protection fault.
func (l *Logger) LogFault(addr uintptr, managed bool) {
	if managed {
		l.Warn("fault inside managed page, terminating goroutine",
			"addr", addr,
		)
	} else {
		l.Error("fault outside managed pages, re-raising",
			"addr", addr,
		)
	}
}
