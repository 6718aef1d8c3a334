package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced in the JSON error envelope.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotAuthenticated     = "NOT_AUTHENTICATED"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeInvalidRole          = "INVALID_ROLE"
	CodeForbidden            = "FORBIDDEN"
	CodeConflict             = "CONFLICT"
	CodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	CodeNoAuthorizedFields   = "NO_AUTHORIZED_FIELDS"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	CodeTooManyRequests      = "TOO_MANY_REQUESTS"
	CodeInternal             = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on code so callers can use errors.Is against the sentinel constructors.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewNotAuthenticated reports a missing external-auth principal.
func NewNotAuthenticated() error {
	return NewDomainError(CodeNotAuthenticated, "please sign in", http.StatusUnauthorized, nil)
}

// NewUserNotFound reports a principal without a provisioned access-control record.
func NewUserNotFound(subjectID string) error {
	return NewDomainError(CodeUserNotFound, "user profile not provisioned", http.StatusNotFound,
		map[string]any{"subject_id": subjectID})
}

// NewInvalidRole reports a role outside the session allow-list.
func NewInvalidRole(role *string) error {
	details := map[string]any{}
	if role != nil {
		details["role"] = *role
	}
	return NewDomainError(CodeInvalidRole, "role not permitted to sign in", http.StatusForbidden, details)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewUnsupportedOperation reports an action the platform refuses outright.
func NewUnsupportedOperation(message string) error {
	return NewDomainError(CodeUnsupportedOperation, message, http.StatusUnprocessableEntity, nil)
}

// NewNoAuthorizedFields reports an update whose every field was filtered out.
func NewNoAuthorizedFields() error {
	return NewDomainError(CodeNoAuthorizedFields, "no authorized fields to update", http.StatusForbidden, nil)
}

// NewServiceUnavailable wraps a transient collaborator fault.
func NewServiceUnavailable(err error) error {
	return &DomainError{
		Code:       CodeServiceUnavailable,
		Message:    "service temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewTooManyRequests() error {
	return NewDomainError(CodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
