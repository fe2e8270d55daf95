// Package monitoring holds the process-wide diagnostic logger shared by the
// filter core, the estimate store and the command-line tools.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger so tests can capture or mute filter
// diagnostics (ill-conditioned innovations, migration progress).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Capture installs a logger that appends every formatted line to lines and
// returns a function restoring the previous logger.
func Capture(lines *[]string) (restore func()) {
	prev := Logf
	Logf = func(format string, v ...interface{}) {
		*lines = append(*lines, fmt.Sprintf(format, v...))
	}
	return func() { Logf = prev }
}
