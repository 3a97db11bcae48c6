package syncplus

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// ThreadID identifies a goroutine for diagnostics. It is never used to make
// locking decisions.
type ThreadID uint64

// NullThreadID is the identity of "no goroutine", e.g. an unheld lock.
const NullThreadID ThreadID = 0

var (
	// Pool of reusable buffers to minimize allocations during stack capture
	bufferPool = sync.Pool{
		New: func() interface{} {
			b := make([]byte, 64)
			return &b
		},
	}

	// Display names assigned with SetThreadName
	nameStore struct {
		sync.RWMutex
		names map[ThreadID]string
	}

	goroutinePrefix = []byte("goroutine ")
)

func init() {
	nameStore.names = make(map[ThreadID]string, 64)
}

// CurrentThreadID returns the identity of the calling goroutine.
// It parses the header line of the goroutine's own stack trace, so it is not
// free; callers only use it on diagnostic paths.
func CurrentThreadID() ThreadID {
	bp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bp)
	buf := *bp

	n := runtime.Stack(buf, false)
	return parseThreadID(buf[:n])
}

// parseThreadID extracts N from a "goroutine N [state]:" stack header.
func parseThreadID(stack []byte) ThreadID {
	if !bytes.HasPrefix(stack, goroutinePrefix) {
		return NullThreadID
	}
	stack = stack[len(goroutinePrefix):]
	if idx := bytes.IndexByte(stack, ' '); idx > 0 {
		stack = stack[:idx]
	}
	id, err := strconv.ParseUint(string(stack), 10, 64)
	if err != nil {
		return NullThreadID
	}
	return ThreadID(id)
}

// String returns the printable form of the id ("none" for NullThreadID).
func (id ThreadID) String() string {
	if id == NullThreadID {
		return "none"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// SetThreadName assigns a display name to the calling goroutine.
// The name shows up in lock wait diagnostics.
func SetThreadName(name string) {
	id := CurrentThreadID()
	nameStore.Lock()
	nameStore.names[id] = name
	nameStore.Unlock()
}

// ReleaseThreadName forgets the display name of the calling goroutine.
// Goroutines that named themselves should defer this before exiting.
func ReleaseThreadName() {
	id := CurrentThreadID()
	nameStore.Lock()
	delete(nameStore.names, id)
	nameStore.Unlock()
}

// ThreadName returns the display name of id. Goroutines without a name are
// reported as "goroutine N".
func ThreadName(id ThreadID) string {
	if id == NullThreadID {
		return "none"
	}
	nameStore.RLock()
	name, ok := nameStore.names[id]
	nameStore.RUnlock()
	if ok {
		return name
	}
	return "goroutine " + id.String()
}

// CleanupThreadNames drops names of goroutines that have exited without
// calling ReleaseThreadName. Names set while the cleanup runs are kept.
func CleanupThreadNames() {
	// goroutine ids are never reused, so ids named after this snapshot
	// cannot be mistaken for dead ones
	nameStore.RLock()
	candidates := make([]ThreadID, 0, len(nameStore.names))
	for id := range nameStore.names {
		candidates = append(candidates, id)
	}
	nameStore.RUnlock()
	if len(candidates) == 0 {
		return
	}

	alive := liveThreadIDs(allStacks())

	nameStore.Lock()
	defer nameStore.Unlock()
	for _, id := range candidates {
		if _, ok := alive[id]; !ok {
			delete(nameStore.names, id)
		}
	}
}

// allStacks returns a complete stack dump of all goroutines, growing the
// buffer until runtime.Stack no longer truncates it.
func allStacks() []byte {
	buf := make([]byte, 1<<20)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}

// liveThreadIDs collects the ids of every goroutine header in a full dump.
func liveThreadIDs(dump []byte) map[ThreadID]struct{} {
	alive := make(map[ThreadID]struct{})
	for _, block := range bytes.Split(dump, []byte("\n\n")) {
		if id := parseThreadID(block); id != NullThreadID {
			alive[id] = struct{}{}
		}
	}
	return alive
}

// NamedThreadCount returns the number of stored display names for monitoring.
func NamedThreadCount() int {
	nameStore.RLock()
	defer nameStore.RUnlock()
	return len(nameStore.names)
}
