// Package streamerr defines the error taxonomy of the streaming pipeline.
package streamerr

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeEncoderUnavailable     = "ENCODER_UNAVAILABLE"
	CodeSourceUnavailable      = "SOURCE_UNAVAILABLE"
	CodeEncoderStartupFailed   = "ENCODER_STARTUP_FAILED"
	CodeUnexpectedExit         = "UNEXPECTED_EXIT"
	CodeExcessiveResourceUsage = "EXCESSIVE_RESOURCE_USAGE"
	CodeStreamURLMissing       = "STREAM_URL_MISSING"
	CodeAlreadyRunning         = "ALREADY_RUNNING"
)

// Error is a pipeline error carrying a machine-readable code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new pipeline error.
func New(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Is reports whether any error in err's chain is an *Error with the given code.
func Is(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Fatal reports whether the error ends a pipeline run.
// Excessive resource usage is the only non-fatal code.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !Is(err, CodeExcessiveResourceUsage)
}
