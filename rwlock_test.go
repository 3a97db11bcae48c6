package syncplus

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRWLockReadersThenWriter(t *testing.T) {
	rw := NewRWLock("scenario-1").WithConfig(fastConfig)

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			rw.RLock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 10, rw.State().Readers)

	acquired := make(chan struct{})
	go func() {
		rw.LockWithPurpose("W")
		close(acquired)
	}()

	require.Eventually(t, func() bool { return rw.State().WriterWaiting }, time.Second, time.Millisecond)

	for i := 0; i < 10; i++ {
		select {
		case <-acquired:
			t.Fatalf("writer acquired with %d readers still inside", 10-i)
		default:
		}
		rw.RUnlock()
	}

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not acquire after the last reader left")
	}

	st := rw.State()
	assert.True(t, st.WriterLocked)
	assert.False(t, st.WriterWaiting)
	assert.Equal(t, 0, st.Readers)
	assert.Equal(t, "W", st.Writer.Purpose)
	assert.NotEqual(t, NullThreadID, st.Writer.Thread)

	rw.Unlock()
	st = rw.State()
	assert.False(t, st.WriterLocked)
	assert.True(t, st.Writer.IsZero())
}

func TestRWLockWriterPriority(t *testing.T) {
	rw := NewRWLock("scenario-2").WithConfig(fastConfig)

	rw.RLock()

	writerIn := make(chan struct{})
	release := make(chan struct{})
	go func() {
		rw.LockWithPurpose("W")
		close(writerIn)
		<-release
		rw.Unlock()
	}()
	require.Eventually(t, func() bool { return rw.State().WriterWaiting }, time.Second, time.Millisecond)

	readerIn := make(chan struct{})
	go func() {
		rw.RLock()
		close(readerIn)
		rw.RUnlock()
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-readerIn:
		t.Fatal("new reader overtook a waiting writer")
	default:
	}

	// first reader leaves, writer goes in
	rw.RUnlock()
	select {
	case <-writerIn:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not acquire")
	}

	time.Sleep(20 * time.Millisecond)
	select {
	case <-readerIn:
		t.Fatal("reader acquired while the writer holds the lock")
	default:
	}

	close(release)
	select {
	case <-readerIn:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not acquire after the writer released")
	}
}

func TestRWLockConcurrentReaders(t *testing.T) {
	rw := NewRWLock("readers")
	const n = 50

	var (
		entered sync.WaitGroup
		leave   = make(chan struct{})
		g       errgroup.Group
	)
	entered.Add(n)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			rw.RLock()
			entered.Done()
			<-leave
			rw.RUnlock()
			return nil
		})
	}

	entered.Wait()
	assert.Equal(t, n, rw.State().Readers, "all readers hold the lock at once")

	close(leave)
	require.NoError(t, g.Wait())
	assert.Equal(t, 0, rw.State().Readers)
}

func TestRWLockExclusion(t *testing.T) {
	rw := NewRWLock("exclusion").WithConfig(Config{PollInterval: 50 * time.Microsecond})

	var (
		readersIn atomic.Int32
		writersIn atomic.Int32
		stop      atomic.Bool
		g         errgroup.Group
	)

	// sample the state machine while the workers run
	g.Go(func() error {
		for !stop.Load() {
			st := rw.State()
			if st.Readers < 0 {
				return errors.New("negative reader count")
			}
			if st.WriterLocked && st.Readers != 0 {
				return errors.New("writer locked with readers inside")
			}
			if st.WriterLocked && st.WriterWaiting {
				return errors.New("writer locked and waiting at once")
			}
			time.Sleep(10 * time.Microsecond)
		}
		return nil
	})

	var workers errgroup.Group
	for i := 0; i < 6; i++ {
		workers.Go(func() error {
			for j := 0; j < 100; j++ {
				rw.RLock()
				readersIn.Add(1)
				bad := writersIn.Load() != 0
				readersIn.Add(-1)
				rw.RUnlock()
				if bad {
					return errors.New("reader inside with a writer")
				}
			}
			return nil
		})
	}
	for i := 0; i < 3; i++ {
		workers.Go(func() error {
			for j := 0; j < 30; j++ {
				rw.LockWithPurpose("exclusion-writer")
				twoWriters := writersIn.Add(1) != 1
				withReaders := readersIn.Load() != 0
				writersIn.Add(-1)
				rw.Unlock()
				if twoWriters {
					return errors.New("two writers inside")
				}
				if withReaders {
					return errors.New("writer inside with readers")
				}
			}
			return nil
		})
	}

	err := workers.Wait()
	stop.Store(true)
	require.NoError(t, err)
	require.NoError(t, g.Wait())

	st := rw.State()
	assert.Equal(t, RWLockState{}, st)
}

func TestRWLockWriterNotStarved(t *testing.T) {
	rw := NewRWLock("stream").WithConfig(fastConfig)

	var (
		stop atomic.Bool
		g    errgroup.Group
	)
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for !stop.Load() {
				rw.RLock()
				time.Sleep(time.Millisecond)
				rw.RUnlock()
			}
			return nil
		})
	}
	defer func() {
		stop.Store(true)
		_ = g.Wait()
	}()

	// let the stream get going
	time.Sleep(10 * time.Millisecond)

	acquired := make(chan struct{})
	go func() {
		rw.LockWithPurpose("starved?")
		close(acquired)
		rw.Unlock()
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("writer starved by continuous readers")
	}
}

func TestRWLockReaderWaitLogsWriter(t *testing.T) {
	logs := &syncBuffer{}
	rw := NewRWLock("index").WithConfig(fastConfig).WithLogger(testLogger(logs))

	rw.LockWithPurpose("rebuild")
	done := make(chan struct{})
	go func() {
		rw.RLock()
		rw.RUnlock()
		close(done)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "waiting for read lock")
	}, 2*time.Second, 5*time.Millisecond)
	rw.Unlock()
	<-done

	out := logs.String()
	assert.Contains(t, out, "level=DEBUG+2", "reader waits log at verbose level")
	assert.Contains(t, out, "holder_purpose=rebuild")
	assert.Contains(t, out, "holder_id="+CurrentThreadID().String())
}

func TestRWLockReaderWaitBehindWaitingWriter(t *testing.T) {
	logs := &syncBuffer{}
	rw := NewRWLock("index").WithConfig(fastConfig).WithLogger(testLogger(logs))

	rw.RLock()
	writerDone := make(chan struct{})
	go func() {
		rw.LockWithPurpose("pending")
		rw.Unlock()
		close(writerDone)
	}()
	require.Eventually(t, func() bool { return rw.State().WriterWaiting }, time.Second, time.Millisecond)

	readerDone := make(chan struct{})
	go func() {
		rw.RLock()
		rw.RUnlock()
		close(readerDone)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "waiting for read lock")
	}, 2*time.Second, 5*time.Millisecond)

	rw.RUnlock()
	<-writerDone
	<-readerDone

	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "waiting for read lock") {
			assert.Contains(t, line, "level=DEBUG+2")
			assert.Contains(t, line, "lock=index")
			assert.NotContains(t, line, "holder_", "a waiting writer holds nothing")
		}
	}
}

func TestRWLockWriterWaitLogs(t *testing.T) {
	tests := []struct {
		name  string
		setup func(rw *RWLock) (cleanup func())
		want  string
	}{
		{
			name: "readers inside",
			setup: func(rw *RWLock) func() {
				rw.RLock()
				return rw.RUnlock
			},
			want: "readers=1",
		},
		{
			name: "write locked",
			setup: func(rw *RWLock) func() {
				rw.LockWithPurpose("first")
				return rw.Unlock
			},
			want: "waiting for write lock (write locked)",
		},
		{
			name: "other writer waiting",
			setup: func(rw *RWLock) func() {
				rw.RLock()
				first := make(chan struct{})
				go func() {
					rw.LockWithPurpose("first")
					rw.Unlock()
					close(first)
				}()
				for !rw.State().WriterWaiting {
					time.Sleep(time.Millisecond)
				}
				return func() {
					rw.RUnlock()
					<-first
				}
			},
			want: "waiting for write lock (other writer waiting)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &syncBuffer{}
			rw := NewRWLock("writers").WithConfig(fastConfig).WithLogger(testLogger(logs))
			cleanup := tt.setup(rw)

			done := make(chan struct{})
			go func() {
				rw.LockWithPurpose("second")
				rw.Unlock()
				close(done)
			}()

			require.Eventually(t, func() bool {
				return strings.Contains(logs.String(), tt.want)
			}, 2*time.Second, 5*time.Millisecond)
			assert.Contains(t, logs.String(), "purpose=second")

			cleanup()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("second writer never acquired")
			}
		})
	}
}

func TestRWLockMisusePanics(t *testing.T) {
	rw := NewRWLock("misuse")
	assert.Panics(t, rw.RUnlock)
	assert.Panics(t, rw.Unlock)

	rw.RLock()
	assert.Panics(t, rw.Unlock, "a reader cannot release the write lock")
	rw.RUnlock()
	assert.Equal(t, 0, rw.State().Readers)
}

func TestRWLockRLocker(t *testing.T) {
	var rw RWLock
	l := rw.RLocker()

	l.Lock()
	l.Lock()
	assert.Equal(t, 2, rw.State().Readers)
	l.Unlock()
	l.Unlock()
	assert.Equal(t, 0, rw.State().Readers)

	rw.Lock()
	assert.True(t, rw.State().WriterLocked)
	assert.Equal(t, "", rw.State().Writer.Purpose)
	rw.Unlock()
}

func TestRWLockStateString(t *testing.T) {
	assert.Equal(t, "3 readers", RWLockState{Readers: 3}.String())
	assert.Equal(t, "1 readers, writer waiting", RWLockState{Readers: 1, WriterWaiting: true}.String())

	s := RWLockState{WriterLocked: true, Writer: Holder{Thread: 1 << 40, Purpose: "sync"}}
	assert.Equal(t, "write locked by 'sync' (goroutine 1099511627776)", s.String())
}
