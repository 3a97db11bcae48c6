//go:build !noprofile

package profiler

// Enabled is true unless built with -tags=noprofile. When false every
// counter update, timer and dump is a no-op.
const Enabled = true
