package monitoring

import "log"

// Logf is the package-level progress/diagnostic logger used across the
// pipeline. It defaults to log.Printf; tests redirect or mute it with
// SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs a recoverable condition (invalid binning policy, ignored weight
// source) through Logf with a WARNING prefix. Warnings never abort the run.
func Warnf(format string, v ...interface{}) {
	Logf("WARNING: "+format, v...)
}
