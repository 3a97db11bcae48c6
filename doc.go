/*
Package syncplus provides locks that report on themselves: a mutex and a
reader/writer lock that log who they are waiting for when a wait takes too
long.

Key Features:
  - Mutex: a sync.Mutex that, while blocked, names the goroutine holding it
  - NamedMutex: the same without holder tracking, for infrastructure code
  - RWLock: a reader/writer lock with writer priority, so readers arriving
    continuously cannot starve a writer
  - Wait diagnostics through log/slog and, optionally, Prometheus

Basic Usage:

	mu := syncplus.NewMutex("peer table")
	mu.Lock()
	// ... critical section ...
	mu.Unlock()

	rw := syncplus.NewRWLock("block index")
	rw.RLock()
	// ... read-only critical section ...
	rw.RUnlock()

	rw.LockWithPurpose("add block")
	// ... exclusive critical section ...
	rw.Unlock()

Waiting:

Blocked callers poll every Config.PollInterval (5ms). A Mutex or NamedMutex
waiting Config.WarnEvery attempts (~1.25s) logs a WARNING naming the holder,
then keeps waiting. RWLock readers log at LevelVerbose after WarnEvery
attempts and writers after Config.WarnEveryLong attempts (~5s). Logging runs
on its own goroutine and never delays an acquisition. None of the locks is
reentrant and none has a timeout.

Goroutines can give themselves a display name with SetThreadName; it is used
in place of "goroutine N" in diagnostics.

Build Tags:

	-tags=nolockdiag   Mutex and NamedMutex become plain sync.Mutex calls

The policy can be changed with SetDefaultConfig, per lock with WithConfig,
through SYNCPLUS_* environment variables or a YAML file (LoadConfig).
*/
package syncplus
