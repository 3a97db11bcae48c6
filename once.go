package syncplus

import (
	"log/slog"
	"sync"
)

var (
	// messages already logged by EmitOnce
	emittedMessages sync.Map
)

// EmitOnce is Emit for messages that should appear once per process, such as
// misconfiguration notices. It reports whether msg was emitted by this call.
func EmitOnce(logger *slog.Logger, level slog.Level, subsystem, msg string, attrs ...slog.Attr) bool {
	if _, loaded := emittedMessages.LoadOrStore(subsystem+"\x00"+msg, true); loaded {
		return false
	}
	Emit(logger, level, subsystem, msg, attrs...)
	return true
}

// ResetEmitOnce forgets every message logged by EmitOnce (mainly for testing)
func ResetEmitOnce() {
	emittedMessages.Range(func(k, _ any) bool {
		emittedMessages.Delete(k)
		return true
	})
}
