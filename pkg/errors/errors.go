package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so callers can compare against the
// predefined values with errors.Is regardless of message overrides.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidEntity     = New("INVALID_ENTITY", http.StatusBadRequest, "invalid entity")
	ErrFieldValidation   = New("FIELD_VALIDATION", http.StatusUnprocessableEntity, "field validation failed")
	ErrDanglingReference = New("DANGLING_REFERENCE", http.StatusUnprocessableEntity, "reference to a missing entity")
	ErrDuplicateID       = New("DUPLICATE_ID", http.StatusConflict, "id already exists")
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrIntegrityApply    = New("INTEGRITY_APPLY", http.StatusConflict, "failed to apply relationship updates")
	ErrStorageIO         = New("STORAGE_IO", http.StatusInternalServerError, "storage failure")
	ErrValidation        = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal          = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss         = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if err.Details != nil {
		clone.Details = make(map[string]string, len(err.Details))
		for k, v := range err.Details {
			clone.Details[k] = v
		}
	}
	return &clone
}

// WithDetail returns a copy of err carrying an extra detail entry.
func WithDetail(err *Error, key, value string) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	if clone.Details == nil {
		clone.Details = map[string]string{}
	}
	clone.Details[key] = value
	return clone
}

// InvalidEntity reports a structurally malformed entity.
func InvalidEntity(kind, reason string) *Error {
	return WithDetail(Clone(ErrInvalidEntity, fmt.Sprintf("invalid %s: %s", kind, reason)), "kind", kind)
}

// FieldInvalid reports a constraint violation on a single field.
func FieldInvalid(field, reason string) *Error {
	return WithDetail(Clone(ErrFieldValidation, fmt.Sprintf("%s %s", field, reason)), "field", field)
}

// Dangling reports a reference to an entity of the expected kind that does not exist.
func Dangling(kind, id string) *Error {
	err := Clone(ErrDanglingReference, fmt.Sprintf("%s %q does not exist", kind, id))
	err = WithDetail(err, "kind", kind)
	return WithDetail(err, "id", id)
}

// DuplicateID reports an id collision on create.
func DuplicateID(kind, id string) *Error {
	err := Clone(ErrDuplicateID, fmt.Sprintf("%s %q already exists", kind, id))
	err = WithDetail(err, "kind", kind)
	return WithDetail(err, "id", id)
}

// NotFound reports an operation on an id that does not exist.
func NotFound(kind, id string) *Error {
	err := Clone(ErrNotFound, fmt.Sprintf("%s %q not found", kind, id))
	err = WithDetail(err, "kind", kind)
	return WithDetail(err, "id", id)
}

// StorageIO wraps a failure of the durable medium.
func StorageIO(err error, op string) *Error {
	return Wrap(err, ErrStorageIO.Code, ErrStorageIO.Status, fmt.Sprintf("storage failure during %s", op))
}

// IntegrityApply wraps a failure while writing counterpart edits.
func IntegrityApply(err error, kind, id string) *Error {
	wrapped := Wrap(err, ErrIntegrityApply.Code, ErrIntegrityApply.Status, fmt.Sprintf("failed to update related %s %q", kind, id))
	wrapped.Details = map[string]string{"kind": kind, "id": id}
	return wrapped
}
