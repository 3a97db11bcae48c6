package profiler

import "time"

// Timer measures one section and reports it to a Record as a single hit.
// Use it as a scope guard:
//
//	t := profiler.NewTimer(rec, true)
//	defer t.Stop()
//
// A Timer belongs to one goroutine and must not outlive its registry.
type Timer struct {
	rec     *Record
	begin   time.Time
	running bool
}

// NewTimer binds a timer to rec and starts it if start is true.
func NewTimer(rec *Record, start bool) *Timer {
	t := &Timer{rec: rec}
	if start {
		t.Start()
	}
	return t
}

// Start begins measuring. Starting a running timer restarts the interval
// without reporting the previous one.
func (t *Timer) Start() {
	if !Enabled || t.rec == nil {
		return
	}
	t.begin = time.Now()
	t.running = true
}

// Stop reports the time since Start as one hit and returns it. Stopping a
// timer that is not running does nothing and returns zero.
func (t *Timer) Stop() time.Duration {
	if !t.running {
		return 0
	}
	d := time.Since(t.begin)
	t.running = false
	t.rec.AddHit(d)
	return d
}

// Running reports whether the timer has been started and not stopped.
func (t *Timer) Running() bool {
	return t.running
}

// Record returns the record the timer reports to.
func (t *Timer) Record() *Record {
	return t.rec
}
