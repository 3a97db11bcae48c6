//go:build nolockdiag

package syncplus

// DiagnosticsEnabled is true unless built with -tags=nolockdiag. When false,
// Mutex and NamedMutex are plain sync.Mutex calls.
const DiagnosticsEnabled = false
