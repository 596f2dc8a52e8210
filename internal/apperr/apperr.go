// Package apperr defines the closed set of error codes used across the
// envelope (spec.md §4.7.1, §7) and a value type that carries them through
// the use-case layer without leaking stack traces.
package apperr

import (
	"errors"
	"fmt"
)

// Code is the closed set of envelope error codes.
type Code string

const (
	CodeValidation            Code = "VALIDATION_ERROR"
	CodeMissingField          Code = "MISSING_FIELD"
	CodeInvalidFormat         Code = "INVALID_FORMAT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeAlreadyExists         Code = "ALREADY_EXISTS"
	CodeHierarchyViolation    Code = "HIERARCHY_VIOLATION"
	CodeDependencyError       Code = "DEPENDENCY_ERROR"
	CodeConstraintViolation   Code = "CONSTRAINT_VIOLATION"
	CodeInvalidState          Code = "INVALID_STATE"
	CodeContextCreationFailed Code = "CONTEXT_CREATION_FAILED"
	CodeContextSyncFailed     Code = "CONTEXT_SYNC_FAILED"
	CodeAutoDetectionFailed   Code = "AUTO_DETECTION_FAILED"
	CodeUnauthorized          Code = "UNAUTHORIZED"
	CodeDatabaseError         Code = "DATABASE_ERROR"
	CodeInternal              Code = "INTERNAL_ERROR"
	CodeOperationFailed       Code = "OPERATION_FAILED"
)

// AppError is the value-level error type every use case returns on failure.
// The failing operation's name travels with it so the envelope
// layer (internal/envelope) never has to re-derive context from a bare
// error string.
type AppError struct {
	Code      Code
	Message   string
	Operation string
	Err       error // wrapped cause, never surfaced verbatim to the envelope
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New builds an AppError with no wrapped cause.
func New(code Code, operation, message string) *AppError {
	return &AppError{Code: code, Operation: operation, Message: message}
}

// Wrap builds an AppError with the given code around an existing error. It
// does not inspect err; Classify is what maps unclassified errors to INTERNAL_ERROR.
func Wrap(code Code, operation, message string, err error) *AppError {
	return &AppError{Code: code, Operation: operation, Message: message, Err: err}
}

// As extracts an *AppError from err, or nil if it isn't one.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// Classify maps an arbitrary error into an AppError, defaulting to
// INTERNAL_ERROR when the error carries no classification of its own. Used
// at the dispatcher boundary so a use case can return plain errors for
// unexpected infrastructure faults without every call site constructing an
// AppError by hand.
func Classify(operation string, err error) *AppError {
	if err == nil {
		return nil
	}
	if ae := As(err); ae != nil {
		if ae.Operation == "" {
			ae.Operation = operation
		}
		return ae
	}
	return Wrap(CodeInternal, operation, "unclassified internal error", err)
}
