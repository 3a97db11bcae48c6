package profiler

import (
	"io"
	"sync"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
// Components that can be handed a *Registry should prefer that over Default.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Data returns the record named name in the default registry.
func Data(name string) *Record {
	return Default().Lookup(name)
}

// Begin starts a timer on the record named name in the default registry.
func Begin(name string) *Timer {
	return Default().Time(name)
}

// Write writes the text dump of the default registry to w.
func Write(w io.Writer) error {
	_, err := Default().WriteTo(w)
	return err
}
