package syncplus

import (
	"fmt"
	"log/slog"
)

// LockType is the kind of acquisition being waited for
type LockType int

const (
	ExclusiveLock LockType = iota
	ReadLock
	WriteLock
)

// stringer for LockType
func (lt LockType) String() string {
	switch lt {
	case ExclusiveLock:
		return "exclusive"
	case ReadLock:
		return "read"
	case WriteLock:
		return "write"
	}
	return fmt.Sprintf("LockType(%d)", int(lt))
}

// Holder describes the goroutine holding a lock at some instant.
type Holder struct {
	Thread ThreadID
	// Purpose is the request name of an RWLock writer, empty for Mutex
	Purpose string
	// Site is the "func file:line" that acquired the lock, when known
	Site string
}

// IsZero reports whether nobody holds the lock.
func (h Holder) IsZero() bool {
	return h.Thread == NullThreadID && h.Purpose == ""
}

// Name is the display name of the holding goroutine.
func (h Holder) Name() string {
	return ThreadName(h.Thread)
}

func (h Holder) String() string {
	if h.IsZero() {
		return "nobody"
	}
	s := describeThread(h.Thread)
	if h.Purpose != "" {
		s = fmt.Sprintf("'%s' (%s)", h.Purpose, s)
	}
	if h.Site != "" {
		s += " at " + h.Site
	}
	return s
}

// describeThread is "goroutine N", or "name (goroutine N)" for named goroutines
func describeThread(id ThreadID) string {
	if id == NullThreadID {
		return "no goroutine"
	}
	plain := "goroutine " + id.String()
	if name := ThreadName(id); name != plain {
		return name + " (" + plain + ")"
	}
	return plain
}

// attrs renders the holder for structured logging.
func (h Holder) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("holder_name", h.Name()),
		slog.String("holder_id", h.Thread.String()),
	}
	if h.Purpose != "" {
		attrs = append(attrs, slog.String("holder_purpose", h.Purpose))
	}
	if h.Site != "" {
		attrs = append(attrs, slog.String("holder_site", h.Site))
	}
	return attrs
}
