package profiler

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/christophcemper/syncplus"
)

// Key identifies a record registered with Registry.LookupID.
type Key struct {
	Set int
	ID  int
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.Set, k.ID)
}

// Record accumulates hits and elapsed time for one profiled section.
//
// Updates are serialized by the record's own NamedMutex so that a hit and its
// duration land together. Reads are lock-free and may observe a concurrent
// update half-way; they are meant for reporting, not for decisions.
type Record struct {
	name  string
	key   Key
	keyed bool

	mu      *syncplus.NamedMutex
	hits    atomic.Uint64
	elapsed atomic.Int64 // nanoseconds
}

func newRecord(name string) *Record {
	return &Record{
		name: name,
		mu:   syncplus.NewNamedMutex("profiler:" + name),
	}
}

func newKeyedRecord(key Key, name string) *Record {
	r := newRecord(name)
	r.key = key
	r.keyed = true
	return r
}

// Name returns the display name.
func (r *Record) Name() string { return r.name }

// Key returns the (set, id) key and whether the record was registered by key.
func (r *Record) Key() (Key, bool) { return r.key, r.keyed }

// AddHit counts one hit that took d.
func (r *Record) AddHit(d time.Duration) {
	if !Enabled {
		return
	}
	r.mu.Lock()
	r.hits.Add(1)
	r.elapsed.Add(int64(d))
	r.mu.Unlock()
}

// AddHits counts n hits without time.
func (r *Record) AddHits(n uint64) {
	if !Enabled {
		return
	}
	r.mu.Lock()
	r.hits.Add(n)
	r.mu.Unlock()
}

// Hit counts one hit without time.
func (r *Record) Hit() {
	r.AddHits(1)
}

// AddTime adds d without counting a hit.
func (r *Record) AddTime(d time.Duration) {
	if !Enabled {
		return
	}
	r.mu.Lock()
	r.elapsed.Add(int64(d))
	r.mu.Unlock()
}

// Clear resets hits and elapsed time to zero.
func (r *Record) Clear() {
	if !Enabled {
		return
	}
	r.mu.Lock()
	r.hits.Store(0)
	r.elapsed.Store(0)
	r.mu.Unlock()
}

// Hits returns the hit count.
func (r *Record) Hits() uint64 { return r.hits.Load() }

// Elapsed returns the accumulated time.
func (r *Record) Elapsed() time.Duration { return time.Duration(r.elapsed.Load()) }

// Milliseconds returns the accumulated time in (fractional) milliseconds.
func (r *Record) Milliseconds() float64 {
	return float64(r.elapsed.Load()) / float64(time.Millisecond)
}

// Average returns Elapsed divided by Hits, or zero without hits.
func (r *Record) Average() time.Duration {
	hits := r.hits.Load()
	if hits == 0 {
		return 0
	}
	return time.Duration(r.elapsed.Load() / int64(hits))
}

// Snapshot is a copy of a record's counters.
type Snapshot struct {
	Name    string
	Key     Key
	Keyed   bool
	Hits    uint64
	Elapsed time.Duration
}

// Average returns Elapsed divided by Hits, or zero without hits.
func (s Snapshot) Average() time.Duration {
	if s.Hits == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Hits)
}

// Snapshot reads the counters. Both values are read under the record lock
// so they belong to the same update.
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	s := Snapshot{
		Name:    r.name,
		Key:     r.key,
		Keyed:   r.keyed,
		Hits:    r.hits.Load(),
		Elapsed: time.Duration(r.elapsed.Load()),
	}
	r.mu.Unlock()
	return s
}
