package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Code is the
// variant tag; Details carries the structured payload for that variant.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
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

// Is matches errors sharing the same code so callers can use errors.Is
// against the predefined values even after Clone/WithDetails.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
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
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Academic rule outcomes. Each one is a distinct, reportable condition.
var (
	ErrAccessDenied         = New("ACCESS_DENIED", http.StatusForbidden, "access denied")
	ErrEnrollmentClosed     = New("ENROLLMENT_CLOSED", http.StatusConflict, "section is not open for enrollment")
	ErrDeadlinePassed       = New("DEADLINE_PASSED", http.StatusConflict, "enrollment deadline has passed")
	ErrAlreadyEnrolled      = New("ALREADY_ENROLLED", http.StatusConflict, "student already holds an enrollment for this course")
	ErrMissingPrerequisites = New("MISSING_PREREQUISITES", http.StatusUnprocessableEntity, "prerequisites not satisfied")
	ErrScheduleConflict     = New("SCHEDULE_CONFLICT", http.StatusConflict, "schedule conflicts with current enrollments")
	ErrSectionFull          = New("SECTION_FULL", http.StatusConflict, "section is full")
	ErrInvalidScore         = New("INVALID_SCORE", http.StatusBadRequest, "score out of range")
	ErrInvalidWeights       = New("INVALID_WEIGHTS", http.StatusBadRequest, "assessment weights must total 100")
	ErrMissingGrades        = New("MISSING_GRADES", http.StatusUnprocessableEntity, "grade sets are incomplete")
	ErrCircularPrerequisite = New("CIRCULAR_PREREQUISITE", http.StatusUnprocessableEntity, "prerequisites form a cycle")
	ErrConcurrencyConflict  = New("CONCURRENCY_CONFLICT", http.StatusConflict, "concurrent modification detected")
	ErrTransient            = New("TRANSIENT_FAILURE", http.StatusServiceUnavailable, "temporarily unable to complete request")
	ErrGradesLocked         = New("GRADES_LOCKED", http.StatusConflict, "grades are locked for this section")
	ErrTermEndInProgress    = New("TERM_END_IN_PROGRESS", http.StatusConflict, "term-end processing already running")
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
	return &clone
}

// WithDetails clones err and attaches a structured payload.
func WithDetails(err *Error, message string, details interface{}) *Error {
	clone := Clone(err, message)
	if clone != nil {
		clone.Details = details
	}
	return clone
}

// HasCode reports whether err normalises to the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
