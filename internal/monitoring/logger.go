// Package monitoring holds the engine's pluggable diagnostic logger.
package monitoring

import "log"

// Logf records engine diagnostics, such as summary or rep-event persistence
// failures, that should not interrupt frame processing. It defaults to
// log.Printf and may be replaced with SetLogger to redirect or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
