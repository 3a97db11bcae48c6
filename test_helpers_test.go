package syncplus

import (
	"bytes"
	"log/slog"
	"sync"
	"time"
)

// fastConfig makes waits and warnings quick enough for tests
var fastConfig = Config{
	PollInterval:  time.Millisecond,
	WarnEvery:     3,
	WarnEveryLong: 3,
}

// syncBuffer is a bytes.Buffer safe for the goroutines started by Emit
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
