// Package log provides a simple, leveled logging interface for the alloydbpg
// storage integrations.
//
// A small Logger interface keeps the rest of the library decoupled from any
// particular logging backend. DefaultLogger writes to stderr through the
// standard library; GologLogger adapts a kataras/golog logger for callers that
// already use it.
//
// # Log Levels
//
// The package supports five log levels, in order of increasing severity:
//
//   - LogLevelDebug: Detailed debugging information for development
//   - LogLevelInfo: General informational messages about normal operation
//   - LogLevelWarn: Warning messages for potentially problematic situations
//   - LogLevelError: Error messages for failures that need attention
//   - LogLevelNone: Disables all logging output
//
// # Example Usage
//
//	// Route library logging through golog at debug level
//	glogger := golog.New()
//	gl := log.NewGologLogger(glogger)
//	gl.SetLevel(log.LogLevelDebug)
//	log.SetDefaultLogger(gl)
//
// Packages in this module log through the package-level functions, so a single
// SetDefaultLogger call redirects everything. The default logger only emits
// warnings and errors.
package log
