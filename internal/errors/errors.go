package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// Sentinel errors for the audit pipeline. Per-image and per-group failures
// are recorded and skipped; only ErrNoGroupsProduced ends an audit.
var (
	ErrNoFaceDetected       = stderrors.New("no face detected")
	ErrEmbeddingUnavailable = stderrors.New("embedding unavailable")
	ErrEmptyGroup           = stderrors.New("group has no usable images")
	ErrNoGroupsProduced     = stderrors.New("no reference images found for audit")
	ErrInsufficientPairs    = stderrors.New("insufficient pairs")
	ErrDimensionMismatch    = stderrors.New("embedding dimension mismatch")
)

// ErrorType classifies a StructuredError.
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeComputation   ErrorType = "computation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeData          ErrorType = "data"
)

// StructuredError carries the failing operation and arbitrary context next
// to the wrapped cause.
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps err with an operation and type. A nil err stays nil.
func Wrap(err error, errType ErrorType, operation, message string) error {
	if err == nil {
		return nil
	}
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// TypeOf reports the ErrorType of the first StructuredError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Type, true
	}
	return "", false
}

func NewValidationError(operation, message string) *StructuredError {
	return New(ErrorTypeValidation, operation, message)
}

func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

func WrapStorageError(err error, operation, message string) error {
	return Wrap(err, ErrorTypeStorage, operation, message)
}

func WrapNetworkError(err error, operation, message string) error {
	return Wrap(err, ErrorTypeNetwork, operation, message)
}

func WrapDataError(err error, operation, message string) error {
	return Wrap(err, ErrorTypeData, operation, message)
}

// Is, As and Join re-export the standard helpers so callers need a single
// errors import.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
)
