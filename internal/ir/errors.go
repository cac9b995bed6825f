package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes dispatch errors.
type ErrorCode string

const (
	// ErrCodeMissingArgument indicates a required positional argument was not supplied.
	ErrCodeMissingArgument ErrorCode = "MISSING_ARGUMENT"

	// ErrCodeTooManyArguments indicates surplus positional values.
	ErrCodeTooManyArguments ErrorCode = "TOO_MANY_ARGUMENTS"

	// ErrCodeValidation indicates input that does not satisfy the schema.
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"

	// ErrCodeNotFound indicates a get request matched no record.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeMultipleResults indicates a get request matched more than one record.
	// The get-by key is not unique: a schema defect, not a recoverable condition.
	ErrCodeMultipleResults ErrorCode = "MULTIPLE_RESULTS"

	// ErrCodeForbidden indicates the authorization gate denied the request.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// ErrCodeRuntime indicates a backend, handler or evaluator failure.
	ErrCodeRuntime ErrorCode = "RUNTIME"

	// ErrCodeUnknownInterface indicates no interface definition with that name exists.
	ErrCodeUnknownInterface ErrorCode = "UNKNOWN_INTERFACE"

	// ErrCodeMissingHandler indicates a generic action without a registered handler.
	ErrCodeMissingHandler ErrorCode = "MISSING_HANDLER"
)

// Error is the error type returned by every dispatch stage.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Resource and Target identify the action or calculation involved.
	Resource string
	Target   string

	// Fields carries field-level details for validation failures.
	Fields []FieldError

	// Err is the underlying cause, if any.
	Err error
}

// FieldError describes a single invalid field or argument.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Resource != "" && e.Target != "" {
		fmt.Fprintf(&b, " (%s.%s)", e.Resource, e.Target)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Error()
		}
		fmt.Fprintf(&b, ": %s", strings.Join(parts, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewMissingArgument creates an error for a required argument without a value.
func NewMissingArgument(name string) *Error {
	return &Error{
		Code:    ErrCodeMissingArgument,
		Message: fmt.Sprintf("missing required argument %q", name),
		Fields:  []FieldError{{Field: name, Message: "is required"}},
	}
}

// NewTooManyArguments creates an error for surplus positional values.
func NewTooManyArguments(want, got int) *Error {
	return &Error{
		Code:    ErrCodeTooManyArguments,
		Message: fmt.Sprintf("expected at most %d positional arguments, got %d", want, got),
	}
}

// NewValidationError creates a validation failure from field-level details.
func NewValidationError(fields ...FieldError) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: "invalid input",
		Fields:  fields,
	}
}

// NewNotFound creates an error for a get request without a match.
func NewNotFound(resource, target string) *Error {
	return &Error{
		Code:     ErrCodeNotFound,
		Message:  "record not found",
		Resource: resource,
		Target:   target,
	}
}

// NewMultipleResults creates an error for a get request matching several records.
func NewMultipleResults(resource, target string) *Error {
	return &Error{
		Code:     ErrCodeMultipleResults,
		Message:  "expected at most one record, query matched more",
		Resource: resource,
		Target:   target,
	}
}

// NewForbidden creates an authorization denial.
func NewForbidden(reason string) *Error {
	if reason == "" {
		reason = "forbidden"
	}
	return &Error{
		Code:    ErrCodeForbidden,
		Message: reason,
	}
}

// NewRuntimeError wraps a backend or handler failure.
func NewRuntimeError(err error) *Error {
	return &Error{
		Code:    ErrCodeRuntime,
		Message: "execution failed",
		Err:     err,
	}
}

// CodeOf returns the ErrorCode of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsForbidden returns true if err is an authorization denial.
func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

// IsValidation returns true if err is a validation failure.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsMultipleResults returns true if err reports a non-unique get key.
func IsMultipleResults(err error) bool {
	return CodeOf(err) == ErrCodeMultipleResults
}

// IsBindingError returns true for MissingArgument and TooManyArguments.
// Binding errors are programming errors at the call site.
func IsBindingError(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeMissingArgument || code == ErrCodeTooManyArguments
}
