package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind is the stable, machine-checkable category of an error.
type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindNotFound        Kind = "NOT_FOUND"
	KindForbidden       Kind = "FORBIDDEN"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindConflict        Kind = "CONFLICT"
	KindTransient       Kind = "TRANSIENT"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// Error is a domain error carrying a Kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation is shorthand for a KindValidation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

var (
	// ErrRecordNotFound is returned by repositories when a lookup matches nothing.
	ErrRecordNotFound = New(KindNotFound, "record not found")
	// ErrDuplicateRecord is returned by repositories on unique constraint violations.
	ErrDuplicateRecord = New(KindConflict, "duplicate record")

	// ErrTaskNotFound is returned when a task is absent or not visible to the caller.
	ErrTaskNotFound = New(KindNotFound, "task not found")
	// ErrUserNotFound is returned when a user is absent.
	ErrUserNotFound = New(KindNotFound, "user not found")
	// ErrNotificationNotFound is returned when a notification id is absent in a task's log.
	ErrNotificationNotFound = New(KindNotFound, "notification not found")
	// ErrNotTaskCreator is returned when a non-creator tries to change a task.
	ErrNotTaskCreator = New(KindForbidden, "only the task creator may modify this task")
	// ErrNotRecipient is returned when someone other than the recipient marks a notification.
	ErrNotRecipient = New(KindForbidden, "only the recipient may mark this notification")
	// ErrNotAuthorized is returned when the caller's role does not satisfy an operation.
	ErrNotAuthorized = New(KindForbidden, "not authorized")
	// ErrInvalidCredentials is returned for unknown email or wrong password alike.
	ErrInvalidCredentials = New(KindUnauthenticated, "invalid email or password")
	// ErrInvalidToken is returned when a session or refresh token is invalid or expired.
	ErrInvalidToken = New(KindUnauthenticated, "invalid or expired token")
	// ErrEmailTaken is returned when registering or changing to an email already in use.
	ErrEmailTaken = New(KindConflict, "email already in use")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// KindOf returns the kind of the first domain error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if stderrors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Details    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Code:    e.Code,
		Details: e.Details,
	}
}

var statusByKind = map[Kind]int{
	KindValidation:      http.StatusBadRequest,
	KindNotFound:        http.StatusNotFound,
	KindForbidden:       http.StatusForbidden,
	KindUnauthenticated: http.StatusUnauthorized,
	KindConflict:        http.StatusConflict,
	KindTransient:       http.StatusServiceUnavailable,
	KindInternal:        http.StatusInternalServerError,
}

// MapErrorToHTTP maps domain errors to HTTP errors. Internal causes are only
// exposed when debug is set.
func MapErrorToHTTP(err error, debug bool) *HTTPError {
	var de *Error
	if !stderrors.As(err, &de) || de.Kind == KindInternal {
		httpErr := NewHTTPError(http.StatusInternalServerError, "internal server error", string(KindInternal))
		if debug {
			httpErr.Details = err.Error()
		}
		return httpErr
	}

	httpErr := NewHTTPError(statusByKind[de.Kind], de.Message, string(de.Kind))
	if de.Kind == KindTransient {
		httpErr.Message = "service temporarily unavailable, please retry"
	}
	if debug && de.Err != nil {
		httpErr.Details = de.Err.Error()
	}
	return httpErr
}

// KindForStatus maps an HTTP status produced outside the domain (router,
// middleware) back onto a kind.
func KindForStatus(status int) Kind {
	for kind, s := range statusByKind {
		if s == status && kind != KindInternal {
			return kind
		}
	}
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTransient
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindInternal
	}
}
