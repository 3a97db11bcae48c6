package syncplus

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// LevelVerbose sits between slog's DEBUG and INFO. Reader and writer wait
// diagnostics of RWLock are emitted at this level.
const LevelVerbose = slog.Level(-2)

// LockSubsystem is the subsystem attribute of every lock diagnostic.
const LockSubsystem = "Mutex"

var packageLogger atomic.Pointer[slog.Logger]

// SetLogger replaces the logger used by locks that were not given one with
// WithLogger. A nil logger restores slog.Default().
func SetLogger(logger *slog.Logger) {
	packageLogger.Store(logger)
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	if l := packageLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// Emit logs msg on logger without blocking the caller. Every handler call,
// Enabled included, runs on a separate goroutine; handler failures and panics
// are dropped. The subsystem attribute is added in front of attrs.
func Emit(logger *slog.Logger, level slog.Level, subsystem, msg string, attrs ...slog.Attr) {
	if logger == nil {
		logger = Logger()
	}
	go func() {
		defer func() { _ = recover() }()
		ctx := context.Background()
		if !logger.Enabled(ctx, level) {
			return
		}
		all := make([]slog.Attr, 0, len(attrs)+1)
		all = append(all, slog.String("subsystem", subsystem))
		all = append(all, attrs...)
		logger.LogAttrs(ctx, level, msg, all...)
	}()
}
