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
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RWLock is a reader/writer lock with writer priority and wait diagnostics.
//
// Any number of readers may hold the lock while no writer holds it. A writer
// first announces itself (writerWaiting); from then on no new reader gets
// in, and the writer acquires as soon as the readers already inside have
// left. This keeps a steady stream of readers from starving writers.
//
// Waiting is done by polling every PollInterval. Readers waiting longer than
// WarnEvery attempts, and writers waiting longer than WarnEveryLong attempts,
// log at LevelVerbose.
//
// The zero value is an unlocked, unnamed RWLock. It is not reentrant, has no
// timeout and must not be copied after first use.
type RWLock struct {
	name string
	lockOptions

	// internal guards the fields below and is never held across a sleep
	// or a log call
	internal      sync.Mutex
	readerCount   int
	writerWaiting bool
	writerLocked  bool
	writeLockName string
	writeThread   ThreadID
}

// RWLockState is a consistent snapshot of an RWLock.
type RWLockState struct {
	Readers       int
	WriterWaiting bool
	WriterLocked  bool
	// Writer is set only while WriterLocked
	Writer Holder
}

func (s RWLockState) String() string {
	switch {
	case s.WriterLocked:
		return fmt.Sprintf("write locked by %s", s.Writer)
	case s.WriterWaiting:
		return fmt.Sprintf("%d readers, writer waiting", s.Readers)
	default:
		return fmt.Sprintf("%d readers", s.Readers)
	}
}

// NewRWLock creates an RWLock named name for diagnostics.
func NewRWLock(name string) *RWLock {
	return &RWLock{name: name}
}

// WithConfig sets the polling policy and returns the lock for chaining
func (rw *RWLock) WithConfig(cfg Config) *RWLock {
	rw.setConfig(cfg)
	return rw
}

// WithLogger sets the diagnostic logger and returns the lock for chaining
func (rw *RWLock) WithLogger(logger *slog.Logger) *RWLock {
	rw.logger = logger
	return rw
}

// WithObserver attaches an Observer and returns the lock for chaining
func (rw *RWLock) WithObserver(o Observer) *RWLock {
	rw.observer = o
	return rw
}

// Name returns the diagnostic name.
func (rw *RWLock) Name() string {
	return rw.name
}

// RLock blocks until no writer holds or waits for the lock, then registers
// the caller as a reader.
func (rw *RWLock) RLock() {
	var (
		cfg    Config
		start  time.Time
		sleeps int
		warned bool
	)
	for {
		rw.internal.Lock()
		if !rw.writerWaiting && !rw.writerLocked {
			rw.readerCount++
			rw.internal.Unlock()
			if warned {
				rw.slowAcquire(rw.name, ReadLock, time.Since(start))
			}
			return
		}
		writer := rw.writerLocked
		writerInfo := Holder{Purpose: rw.writeLockName, Thread: rw.writeThread}
		rw.internal.Unlock()

		if start.IsZero() {
			cfg = rw.config()
			start = time.Now()
		}
		sleeps++
		if sleeps >= cfg.WarnEvery {
			attrs := []slog.Attr{
				slog.String("lock", rw.name),
				slog.Duration("waited", time.Since(start)),
			}
			if writer {
				attrs = append(attrs, writerInfo.attrs()...)
			}
			Emit(rw.logger, LevelVerbose, LockSubsystem, "waiting for read lock", attrs...)
			rw.warn(rw.name, ReadLock)
			warned = true
			sleeps = 0
		}
		time.Sleep(cfg.PollInterval)
	}
}

// RUnlock releases one reader. It panics if no reader holds the lock.
func (rw *RWLock) RUnlock() {
	rw.internal.Lock()
	if rw.readerCount <= 0 {
		rw.internal.Unlock()
		panic(fmt.Sprintf("syncplus: RUnlock of unlocked RWLock %q", rw.name))
	}
	rw.readerCount--
	rw.internal.Unlock()
}

// Lock acquires the lock for writing without a request name.
func (rw *RWLock) Lock() {
	rw.LockWithPurpose("")
}

// LockWithPurpose acquires the lock for writing. purpose names the request
// in diagnostics of other goroutines waiting on this lock.
func (rw *RWLock) LockWithPurpose(purpose string) {
	cfg := rw.config()
	start := time.Now()
	warned := rw.claimWriter(purpose, cfg, start)
	if rw.drainReaders(purpose, CurrentThreadID(), cfg, start) {
		warned = true
	}
	if warned {
		rw.slowAcquire(rw.name, WriteLock, time.Since(start))
	}
}

// claimWriter waits until no other writer holds or waits for the lock and
// sets writerWaiting, which blocks new readers.
func (rw *RWLock) claimWriter(purpose string, cfg Config, start time.Time) (warned bool) {
	sleeps := 0
	for {
		rw.internal.Lock()
		if !rw.writerWaiting && !rw.writerLocked {
			rw.writerWaiting = true
			rw.internal.Unlock()
			return warned
		}
		locked := rw.writerLocked
		holder := Holder{Purpose: rw.writeLockName, Thread: rw.writeThread}
		rw.internal.Unlock()

		sleeps++
		if sleeps >= cfg.WarnEveryLong {
			attrs := []slog.Attr{
				slog.String("lock", rw.name),
				slog.String("purpose", purpose),
				slog.Duration("waited", time.Since(start)),
			}
			msg := "waiting for write lock (other writer waiting)"
			if locked {
				msg = "waiting for write lock (write locked)"
				attrs = append(attrs, holder.attrs()...)
			}
			Emit(rw.logger, LevelVerbose, LockSubsystem, msg, attrs...)
			rw.warn(rw.name, WriteLock)
			warned = true
			sleeps = 0
		}
		time.Sleep(cfg.PollInterval)
	}
}

// drainReaders waits for the readers that were inside when the writer
// announced itself, then takes the lock.
func (rw *RWLock) drainReaders(purpose string, thread ThreadID, cfg Config, start time.Time) (warned bool) {
	sleeps := 0
	for {
		rw.internal.Lock()
		if rw.readerCount == 0 {
			rw.writerWaiting = false
			rw.writerLocked = true
			rw.writeLockName = purpose
			rw.writeThread = thread
			rw.internal.Unlock()
			return warned
		}
		readers := rw.readerCount
		rw.internal.Unlock()

		sleeps++
		if sleeps >= cfg.WarnEveryLong {
			Emit(rw.logger, LevelVerbose, LockSubsystem, "waiting for readers to unlock",
				slog.String("lock", rw.name),
				slog.String("purpose", purpose),
				slog.Int("readers", readers),
				slog.Duration("waited", time.Since(start)))
			rw.warn(rw.name, WriteLock)
			warned = true
			sleeps = 0
		}
		time.Sleep(cfg.PollInterval)
	}
}

// Unlock releases the write lock. It panics if no writer holds the lock.
func (rw *RWLock) Unlock() {
	rw.internal.Lock()
	if !rw.writerLocked {
		rw.internal.Unlock()
		panic(fmt.Sprintf("syncplus: Unlock of unlocked RWLock %q", rw.name))
	}
	rw.writeLockName = ""
	rw.writerLocked = false
	rw.writeThread = NullThreadID
	rw.internal.Unlock()
}

// State returns a snapshot of the lock.
func (rw *RWLock) State() RWLockState {
	rw.internal.Lock()
	defer rw.internal.Unlock()
	s := RWLockState{
		Readers:       rw.readerCount,
		WriterWaiting: rw.writerWaiting,
		WriterLocked:  rw.writerLocked,
	}
	if rw.writerLocked {
		s.Writer = Holder{Thread: rw.writeThread, Purpose: rw.writeLockName}
	}
	return s
}

// RLocker returns a sync.Locker that calls RLock and RUnlock.
func (rw *RWLock) RLocker() sync.Locker {
	return (*rlocker)(rw)
}

type rlocker RWLock

func (r *rlocker) Lock()   { (*RWLock)(r).RLock() }
func (r *rlocker) Unlock() { (*RWLock)(r).RUnlock() }
