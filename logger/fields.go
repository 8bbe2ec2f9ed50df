package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across fsasync.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldJobID = "job_id"
	FieldHook  = "hook"

	// Files and paths
	FieldID   = "id"   // raw identifier as supplied by the host
	FieldPath = "path" // sandboxed filesystem path
	FieldMode = "mode" // write or append
	FieldSize = "size"

	// Outcome
	FieldStatus   = "status"
	FieldError    = "error"
	FieldCallback = "callback"

	// Worker pool
	FieldPending     = "pending"
	FieldProcessed   = "processed"
	FieldAbandoned   = "abandoned"
	FieldMaxInFlight = "max_in_flight"
	FieldTimeout     = "timeout"

	// Guest
	FieldExport = "export"
	FieldToken  = "token"
	FieldPtr    = "ptr"
	FieldLen    = "len"

	// CLI
	FieldVerbosity = "verbosity"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	m, err := async.New(cfg, loop, async.WithLogger(logger.ComponentLogger("fsasync")))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
// Example:
//
//	jobLog := logger.ChildLogger(wp.logger.SugaredLogger, logger.FieldJobID, job.ID)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
