// Package errors provides error handling for fsasync.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Safe details that survive redaction
//
// Usage:
//
//	// Wrap with context
//	if err := v.ReadInConfig(); err != nil {
//	    return errors.Wrap(err, "failed to read config")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrShutdownTimeout) {
//	    // some jobs were abandoned
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New           = crdb.New
	Newf          = crdb.Newf
	Wrap          = crdb.Wrap
	Wrapf         = crdb.Wrapf
	WithStack     = crdb.WithStack
	WithMessage   = crdb.WithMessage
	WithMessagef  = crdb.WithMessagef
	CombineErrors = crdb.CombineErrors
)

// User-facing messages and details
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors shared across fsasync packages.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrClosed indicates the module or engine has already been shut down
	ErrClosed = New("closed")

	// ErrShutdownTimeout indicates in-flight jobs were abandoned at the shutdown deadline
	ErrShutdownTimeout = New("shutdown timed out")

	// ErrInvalidConfig indicates a configuration value failed validation
	ErrInvalidConfig = New("invalid configuration")

	// ErrGuestMemory indicates a guest pointer/length pair fell outside linear memory
	ErrGuestMemory = New("guest memory access out of range")
)

// IsClosedError checks if an error is or wraps ErrClosed
func IsClosedError(err error) bool {
	return err != nil && Is(err, ErrClosed)
}

// IsShutdownTimeoutError checks if an error is or wraps ErrShutdownTimeout
func IsShutdownTimeoutError(err error) bool {
	return err != nil && Is(err, ErrShutdownTimeout)
}

// NewInvalidConfigError creates an invalid-config error with a formatted message
func NewInvalidConfigError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidConfig, Newf(format, args...).Error())
}
