package profiler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/christophcemper/syncplus"
)

// Subsystem is the subsystem attribute of profiler log records.
const Subsystem = "Profiler"

// maxDense bounds the (set, id) pairs kept in the dense table. Larger or
// negative keys go to a map.
const maxDense = 1 << 12

// Registry maps profiling keys to records. Records are created on first
// lookup and live as long as the registry; a lookup never fails.
//
// Records can be looked up by name, or by a small (set, id) key which
// indexes a dense table and avoids comparing names on hot paths. The two
// key spaces are independent.
type Registry struct {
	mu     *syncplus.NamedMutex
	logger *slog.Logger

	byName map[string]*Record
	dense  [][]*Record
	sparse map[Key]*Record
	all    []*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:     syncplus.NewNamedMutex("profiler registry"),
		byName: make(map[string]*Record),
		sparse: make(map[Key]*Record),
	}
}

// WithLogger sets the logger used by Dump and returns the registry for chaining
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Lookup returns the record named name, creating it if needed.
func (r *Registry) Lookup(name string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.byName[name]; ok {
		return rec
	}
	rec := newRecord(name)
	r.byName[name] = rec
	r.all = append(r.all, rec)
	return rec
}

// LookupID returns the record for (set, id), creating it with display name
// name if needed. The name of an existing record is not changed.
func (r *Registry) LookupID(set, id int, name string) *Record {
	key := Key{Set: set, ID: id}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !isDense(key) {
		if rec, ok := r.sparse[key]; ok {
			return rec
		}
		rec := newKeyedRecord(key, name)
		r.sparse[key] = rec
		r.all = append(r.all, rec)
		return rec
	}

	if set < len(r.dense) && id < len(r.dense[set]) {
		if rec := r.dense[set][id]; rec != nil {
			return rec
		}
	}

	for len(r.dense) <= set {
		r.dense = append(r.dense, nil)
	}
	if id >= len(r.dense[set]) {
		grown := make([]*Record, id+1)
		copy(grown, r.dense[set])
		r.dense[set] = grown
	}
	rec := newKeyedRecord(key, name)
	r.dense[set][id] = rec
	r.all = append(r.all, rec)
	return rec
}

func isDense(k Key) bool {
	return k.Set >= 0 && k.Set < maxDense && k.ID >= 0 && k.ID < maxDense
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.all)
}

// records returns a copy of the record list in creation order
func (r *Registry) records() []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Record(nil), r.all...)
}

// Reset zeroes every record. Records stay registered.
func (r *Registry) Reset() {
	for _, rec := range r.records() {
		rec.Clear()
	}
}

// Records returns a snapshot of every record, sorted by name, then key.
// The snapshot is taken record by record and is not atomic across records.
func (r *Registry) Records() []Snapshot {
	recs := r.records()
	snaps := make([]Snapshot, 0, len(recs))
	for _, rec := range recs {
		snaps = append(snaps, rec.Snapshot())
	}

	// Sort by name for consistent output
	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].Name != snaps[j].Name {
			return snaps[i].Name < snaps[j].Name
		}
		if snaps[i].Keyed != snaps[j].Keyed {
			return !snaps[i].Keyed
		}
		if snaps[i].Key.Set != snaps[j].Key.Set {
			return snaps[i].Key.Set < snaps[j].Key.Set
		}
		return snaps[i].Key.ID < snaps[j].Key.ID
	})
	return snaps
}

// Dump logs one entry per record at level: name, hits, total and average
// elapsed time. It does not modify any record. A panicking handler ends the
// dump without reaching the caller.
func (r *Registry) Dump(ctx context.Context, level slog.Level) {
	if !Enabled {
		return
	}
	logger := r.logger
	if logger == nil {
		logger = syncplus.Logger()
	}
	defer func() { _ = recover() }()
	if !logger.Enabled(ctx, level) {
		return
	}
	for _, s := range r.Records() {
		attrs := []slog.Attr{
			slog.String("subsystem", Subsystem),
			slog.String("name", s.Name),
			slog.Uint64("hits", s.Hits),
			slog.Duration("total", s.Elapsed),
			slog.Duration("average", s.Average()),
		}
		if s.Keyed {
			attrs = append(attrs, slog.String("key", s.Key.String()))
		}
		logger.LogAttrs(ctx, level, "profile", attrs...)
	}
}

// WriteTo writes a text table of every record to w.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var out strings.Builder
	snaps := r.Records()

	out.WriteString("=== Profiler ===\n")
	out.WriteString(fmt.Sprintf("Records: %d\n", len(snaps)))
	for _, s := range snaps {
		name := s.Name
		if s.Keyed {
			name = fmt.Sprintf("%s [%s]", s.Name, s.Key)
		}
		out.WriteString(fmt.Sprintf("%-40s %10d hits %14s total %14s avg\n",
			name, s.Hits, s.Elapsed, s.Average()))
	}

	n, err := io.WriteString(w, out.String())
	return int64(n), err
}

// Time returns a started Timer on the record named name.
//
//	defer reg.Time("parse block").Stop()
func (r *Registry) Time(name string) *Timer {
	if !Enabled {
		return &Timer{}
	}
	return NewTimer(r.Lookup(name), true)
}

// TimeID returns a started Timer on the record keyed (set, id).
func (r *Registry) TimeID(set, id int, name string) *Timer {
	if !Enabled {
		return &Timer{}
	}
	return NewTimer(r.LookupID(set, id, name), true)
}
