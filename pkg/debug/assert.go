//go:build debugchecks

package debug

import "fmt"

// Assert panics with a formatted message when cond is false. Built
// only under the debugchecks tag: audio-path invariant violations are
// programming errors, and in release the process call reports a
// generic failure instead of carrying rich error state out of the
// callback.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
