/*
Package profiler counts hits and time of code sections.

A Registry hands out one Record per key, either a name or a small (set, id)
pair. Records count hits and accumulated time and can be reset or dumped,
but never removed.

	reg := profiler.NewRegistry()

	func parse(reg *profiler.Registry) {
		defer reg.Time("parse").Stop()
		// ...
	}

	reg.Dump(ctx, slog.LevelInfo)

Hot paths should use integer keys, which index a table instead of hashing a
name:

	const setNet, idReadMsg = 1, 0
	defer reg.TimeID(setNet, idReadMsg, "read message").Stop()

Default, Data, Begin and Write operate on a process-wide registry.

Building with -tags=noprofile turns every counter update, timer and dump
into a no-op.
*/
package profiler
