// Package errors provides structured error types for the service catalog.
// It implements error classification, wrapping, and field-level validation detail.
package errors

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind represents the category of an error.
type Kind uint8

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindConfig indicates a configuration error.
	KindConfig
	// KindValidation indicates malformed or missing input.
	KindValidation
	// KindConflict indicates a uniqueness violation or a concurrent write conflict.
	KindConflict
	// KindState indicates an operation that is illegal for the entity's current status.
	KindState
	// KindNotFound indicates a referenced entity does not resolve.
	KindNotFound
	// KindAuthentication indicates no actor could be resolved for the call.
	KindAuthentication
	// KindPermission indicates the actor is not allowed to perform the operation.
	KindPermission
	// KindStorage indicates a failure in the persistence layer.
	KindStorage
	// KindCanceled indicates the operation was canceled.
	KindCanceled
	// KindInternal indicates an internal error.
	KindInternal
)

// String returns a machine-readable string for the error kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindPermission:
		return "permission"
	case KindStorage:
		return "storage"
	case KindCanceled:
		return "canceled"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the standard error type for the service catalog.
type Error struct {
	// Kind is the category of the error.
	Kind Kind
	// Op is the operation being performed when the error occurred.
	Op string
	// Message is a human-readable error message.
	Message string
	// Err is the underlying error.
	Err error
	// Recoverable indicates the caller may retry the operation.
	Recoverable bool
	// Details contains additional context about the error.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches this error.
// For sentinel errors (errors without Op), only Kind is compared.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op
}

// WithDetail adds a single detail to the error and returns the modified error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Fields returns the field-level validation messages attached to the error, if any.
func (e *Error) Fields() map[string]string {
	if e.Details == nil {
		return nil
	}
	fields, _ := e.Details[detailFields].(map[string]string)
	return fields
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, kind Kind, op string, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// GetKind returns the Kind of an error.
// If the error is not an *Error, it returns KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks if an error is of a specific kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// IsRetryableConflict reports whether err is a conflict the caller may retry,
// such as a serialization failure or a busy database.
func IsRetryableConflict(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindConflict && e.Recoverable
}

// Config creates a configuration error.
func Config(op, message string) *Error {
	return &Error{Kind: KindConfig, Op: op, Message: message}
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(err error, op, message string) *Error {
	return Wrap(err, KindConfig, op, message)
}

// Validation creates a validation error.
func Validation(op, message string) *Error {
	return &Error{
		Kind:        KindValidation,
		Op:          op,
		Message:     message,
		Recoverable: true,
	}
}

// ValidationField creates a validation error for a single field.
func ValidationField(op, field, message string) *Error {
	return Validation(op, fmt.Sprintf("%s: %s", field, message)).
		WithDetail(detailFields, map[string]string{field: message})
}

// NotFound creates a not found error.
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// NotFoundWrap wraps an error as a not found error.
func NotFoundWrap(err error, op, message string) *Error {
	return Wrap(err, KindNotFound, op, message)
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: message}
}

// ConflictWrap wraps an error as a conflict error.
func ConflictWrap(err error, op, message string) *Error {
	return Wrap(err, KindConflict, op, message)
}

// RetryableConflict wraps a transient write conflict that may succeed on retry.
func RetryableConflict(err error, op, message string) *Error {
	e := Wrap(err, KindConflict, op, message)
	e.Recoverable = true
	return e
}

// State creates a state error.
func State(op, message string) *Error {
	return &Error{Kind: KindState, Op: op, Message: message}
}

// StateWrap wraps an error as a state error.
func StateWrap(err error, op, message string) *Error {
	return Wrap(err, KindState, op, message)
}

// Authentication creates an authentication error.
func Authentication(op, message string) *Error {
	return &Error{Kind: KindAuthentication, Op: op, Message: message}
}

// Permission creates a permission error.
func Permission(op, message string) *Error {
	return &Error{Kind: KindPermission, Op: op, Message: message}
}

// Storage creates a storage error.
func Storage(op, message string) *Error {
	return &Error{Kind: KindStorage, Op: op, Message: message}
}

// StorageWrap wraps an error as a storage error with sensitive data redacted.
func StorageWrap(err error, op, message string) *Error {
	return WrapSafe(err, KindStorage, op, message)
}

// Internal creates an internal error.
func Internal(op, message string) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: message}
}

// InternalWrap wraps an error as an internal error.
func InternalWrap(err error, op, message string) *Error {
	return Wrap(err, KindInternal, op, message)
}

const detailFields = "fields"

// FieldErrors collects field-level validation failures.
type FieldErrors struct {
	fields map[string]string
	order  []string
}

// Add records a message for field. The first message per field wins.
func (f *FieldErrors) Add(field, message string) {
	if f.fields == nil {
		f.fields = make(map[string]string)
	}
	if _, exists := f.fields[field]; exists {
		return
	}
	f.fields[field] = message
	f.order = append(f.order, field)
}

// Addf records a formatted message for field.
func (f *FieldErrors) Addf(field, format string, args ...any) {
	f.Add(field, fmt.Sprintf(format, args...))
}

// HasErrors returns true if any field failed.
func (f *FieldErrors) HasErrors() bool {
	return len(f.fields) > 0
}

// Len returns the number of failed fields.
func (f *FieldErrors) Len() int {
	return len(f.fields)
}

// Get returns the message recorded for field.
func (f *FieldErrors) Get(field string) (string, bool) {
	msg, ok := f.fields[field]
	return msg, ok
}

// ToError converts the collected failures into a validation *Error, or nil.
func (f *FieldErrors) ToError(op string) error {
	if !f.HasErrors() {
		return nil
	}

	parts := make([]string, 0, len(f.order))
	for _, field := range f.order {
		parts = append(parts, fmt.Sprintf("%s: %s", field, f.fields[field]))
	}

	fields := make(map[string]string, len(f.fields))
	for k, v := range f.fields {
		fields[k] = v
	}

	return Validation(op, strings.Join(parts, "; ")).WithDetail(detailFields, fields)
}

// Sensitive data redaction patterns for connection strings and credentials.
var sensitivePatterns = []*regexp.Regexp{
	// Credentials embedded in a DSN or URL
	regexp.MustCompile(`://[^:/@\s]+:[^@\s]+@`),
	// key=value passwords in libpq-style DSNs
	regexp.MustCompile(`(?i)\bpassword=\S+`),
	// Generic bearer tokens
	regexp.MustCompile(`\bBearer\s+[a-zA-Z0-9_.-]{20,}\b`),
}

// RedactSensitive removes credentials from a message.
func RedactSensitive(s string) string {
	result := s
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// RedactError creates a new error with sensitive data redacted from its message.
// If the error is nil, returns nil.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	redacted := RedactSensitive(err.Error())
	if redacted == err.Error() {
		return err
	}
	return errors.New(redacted)
}

// WrapSafe wraps an error with sensitive data redacted.
func WrapSafe(err error, kind Kind, op, message string) *Error {
	if err == nil {
		return &Error{Kind: kind, Op: op, Message: message}
	}
	return Wrap(RedactError(err), kind, op, message)
}
