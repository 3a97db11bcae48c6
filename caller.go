package syncplus

import (
	"fmt"
	"runtime"
	"strings"
)

// shouldIncludeFrame returns true if the frame belongs to application code,
// filtering out the runtime and this package (except its tests).
func shouldIncludeFrame(file, function string) bool {
	if strings.HasSuffix(file, "_test.go") {
		return true
	}
	return !strings.HasPrefix(function, "runtime.") &&
		!strings.Contains(function, "christophcemper/syncplus.") &&
		!strings.Contains(file, "/src/runtime/")
}

// callerSite returns "func file:line" of the first application frame above
// the lock call, or "unknown".
func callerSite() string {
	var pcs [16]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if shouldIncludeFrame(frame.File, frame.Function) {
			// keep the last part of the function name after the last /
			parts := strings.Split(frame.Function, "/")
			return fmt.Sprintf("%s %s:%d", parts[len(parts)-1], frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return "unknown"
}
