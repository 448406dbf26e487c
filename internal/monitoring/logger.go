// Package monitoring holds the process-wide diagnostic loggers used by the
// decode pipeline.
package monitoring

import (
	"log"
	"os"
	"sync/atomic"
)

// EnvDebug enables Debugf output when set to a non-empty value.
const EnvDebug = "TELEMETRY_DEBUG"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var debug atomic.Bool

func init() {
	debug.Store(os.Getenv(EnvDebug) != "")
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug toggles per-item diagnostics such as dropped frames.
func SetDebug(on bool) { debug.Store(on) }

// DebugEnabled reports whether Debugf writes anything.
func DebugEnabled() bool { return debug.Load() }

// Debugf logs through Logf only when debug output is enabled.
func Debugf(format string, v ...interface{}) {
	if debug.Load() {
		Logf(format, v...)
	}
}
