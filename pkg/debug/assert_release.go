//go:build !debugchecks

package debug

// Assert is a no-op in release builds. See assert.go.
func Assert(cond bool, format string, args ...interface{}) {}
