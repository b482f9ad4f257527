package monitoring

import "log"

// Logf is the package-level diagnostic logger used across the fusion core.
// It defaults to log.Printf but may be replaced by SetLogger; the per-frame
// decision step logs only on state transitions, never per frame.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, which tests use to keep output quiet.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
