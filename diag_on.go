//go:build !nolockdiag

package syncplus

// DiagnosticsEnabled is true unless built with -tags=nolockdiag. When true,
// Mutex and NamedMutex poll with TryLock and report long waits.
const DiagnosticsEnabled = true
