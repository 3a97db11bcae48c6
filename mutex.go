// Copyright (c) 2024 Christoph C. Cemper
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package syncplus

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// lockOptions is the per-lock policy shared by all lock kinds. The With*
// setters must be called before the lock is shared between goroutines.
type lockOptions struct {
	cfg      *Config
	logger   *slog.Logger
	observer Observer
}

func (o *lockOptions) config() Config {
	if o.cfg != nil {
		return *o.cfg
	}
	return CurrentDefaultConfig()
}

func (o *lockOptions) setConfig(cfg Config) {
	cfg = cfg.withDefaults()
	o.cfg = &cfg
}

func (o *lockOptions) warn(lock string, kind LockType) {
	if o.observer != nil {
		o.observer.WaitWarning(lock, kind)
	}
}

func (o *lockOptions) slowAcquire(lock string, kind LockType, waited time.Duration) {
	if o.observer != nil {
		o.observer.SlowAcquire(lock, kind, waited)
	}
}

// pollTryLock spins on TryLock, sleeping cfg.PollInterval between attempts,
// and calls onWarn every cfg.WarnEvery failed attempts. It returns once mu is
// held.
func pollTryLock(mu *sync.Mutex, cfg Config, onWarn func(waited time.Duration)) (waited time.Duration, warned bool) {
	start := time.Now()
	sleeps := 0
	for !mu.TryLock() {
		time.Sleep(cfg.PollInterval)
		sleeps++
		if sleeps >= cfg.WarnEvery {
			onWarn(time.Since(start))
			warned = true
			sleeps = 0
		}
	}
	return time.Since(start), warned
}

// Mutex is a mutual exclusion lock that reports long waits.
//
// With DiagnosticsEnabled, a blocked Lock polls the lock and logs a WARNING
// naming the current holder every WarnEvery attempts. Without it, Lock and
// Unlock are plain sync.Mutex calls.
//
// The zero value is an unlocked, unnamed Mutex. A Mutex is not reentrant and
// must not be copied after first use.
type Mutex struct {
	mu     sync.Mutex
	name   string
	holder atomic.Uint64
	site   atomic.Pointer[string]
	lockOptions
}

// NewMutex creates a Mutex named name for diagnostics.
func NewMutex(name string) *Mutex {
	return &Mutex{name: name}
}

// WithConfig sets the polling policy and returns the mutex for chaining
func (m *Mutex) WithConfig(cfg Config) *Mutex {
	m.setConfig(cfg)
	return m
}

// WithLogger sets the diagnostic logger and returns the mutex for chaining
func (m *Mutex) WithLogger(logger *slog.Logger) *Mutex {
	m.logger = logger
	return m
}

// WithObserver attaches an Observer and returns the mutex for chaining
func (m *Mutex) WithObserver(o Observer) *Mutex {
	m.observer = o
	return m
}

// Name returns the diagnostic name.
func (m *Mutex) Name() string {
	return m.name
}

// Lock blocks until the mutex is held by the calling goroutine.
func (m *Mutex) Lock() {
	if !DiagnosticsEnabled {
		m.mu.Lock()
		return
	}
	m.lockDiagnosed()
}

// TryLock acquires the mutex if it is free and reports whether it did.
func (m *Mutex) TryLock() bool {
	if !m.mu.TryLock() {
		return false
	}
	if DiagnosticsEnabled {
		m.setHolder()
	}
	return true
}

// Unlock releases the mutex. Unlocking an unlocked Mutex is a fatal error.
func (m *Mutex) Unlock() {
	if DiagnosticsEnabled {
		m.holder.Store(uint64(NullThreadID))
		m.site.Store(nil)
	}
	m.mu.Unlock()
}

// Holder returns the goroutine currently holding the mutex. It is only
// tracked with DiagnosticsEnabled and may be momentarily stale.
func (m *Mutex) Holder() Holder {
	h := Holder{Thread: ThreadID(m.holder.Load())}
	if site := m.site.Load(); site != nil {
		h.Site = *site
	}
	return h
}

func (m *Mutex) lockDiagnosed() {
	if !m.mu.TryLock() {
		waited, warned := pollTryLock(&m.mu, m.config(), m.waitWarning)
		if warned {
			m.slowAcquire(m.name, ExclusiveLock, waited)
		}
	}
	m.setHolder()
}

func (m *Mutex) setHolder() {
	m.holder.Store(uint64(CurrentThreadID()))
	site := callerSite()
	m.site.Store(&site)
}

func (m *Mutex) waitWarning(waited time.Duration) {
	attrs := append([]slog.Attr{
		slog.String("lock", m.name),
		slog.Duration("waited", waited),
	}, m.Holder().attrs()...)
	Emit(m.logger, slog.LevelWarn, LockSubsystem, "waiting for lock", attrs...)
	m.warn(m.name, ExclusiveLock)
}

// NamedMutex is a Mutex with a name fixed at construction and no holder
// tracking. It is meant for infrastructure that should not itself pay for,
// or show up in, holder attribution (the profiler uses it).
type NamedMutex struct {
	mu   sync.Mutex
	name string
	lockOptions
}

// NewNamedMutex creates a NamedMutex. The name cannot be changed later.
func NewNamedMutex(name string) *NamedMutex {
	return &NamedMutex{name: name}
}

// WithConfig sets the polling policy and returns the mutex for chaining
func (m *NamedMutex) WithConfig(cfg Config) *NamedMutex {
	m.setConfig(cfg)
	return m
}

// WithLogger sets the diagnostic logger and returns the mutex for chaining
func (m *NamedMutex) WithLogger(logger *slog.Logger) *NamedMutex {
	m.logger = logger
	return m
}

// WithObserver attaches an Observer and returns the mutex for chaining
func (m *NamedMutex) WithObserver(o Observer) *NamedMutex {
	m.observer = o
	return m
}

// Name returns the diagnostic name.
func (m *NamedMutex) Name() string {
	return m.name
}

// Lock blocks until the mutex is held by the calling goroutine.
func (m *NamedMutex) Lock() {
	if !DiagnosticsEnabled {
		m.mu.Lock()
		return
	}
	m.lockDiagnosed()
}

// TryLock acquires the mutex if it is free and reports whether it did.
func (m *NamedMutex) TryLock() bool {
	return m.mu.TryLock()
}

// Unlock releases the mutex. Unlocking an unlocked NamedMutex is a fatal error.
func (m *NamedMutex) Unlock() {
	m.mu.Unlock()
}

func (m *NamedMutex) lockDiagnosed() {
	if m.mu.TryLock() {
		return
	}
	waited, warned := pollTryLock(&m.mu, m.config(), m.waitWarning)
	if warned {
		m.slowAcquire(m.name, ExclusiveLock, waited)
	}
}

func (m *NamedMutex) waitWarning(waited time.Duration) {
	Emit(m.logger, slog.LevelWarn, LockSubsystem, "waiting for lock",
		slog.String("lock", m.name),
		slog.Duration("waited", waited))
	m.warn(m.name, ExclusiveLock)
}
