package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError is a custom error type that includes an HTTP status code and a
// machine-readable kind so clients can tell rejection reasons apart.
type AppError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches on Kind, so a sentinel matches any AppError built from it with a
// more specific message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{Code: e.Code, Kind: e.Kind, Message: msg}
}

// NewAppError creates a new AppError
func NewAppError(code int, kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

const (
	KindInvalidRequest       = "invalid_request"
	KindUnauthorized         = "unauthorized"
	KindForbidden            = "forbidden"
	KindNotFound             = "not_found"
	KindInternal             = "internal"
	KindRateLimit            = "rate_limited"
	KindConflict             = "conflict"
	KindActiveContestExists  = "active_contest_exists"
	KindContestNotActive     = "contest_not_active"
	KindInsufficientProblems = "insufficient_problems"
	KindTimeLimitExceeded    = "time_limit_exceeded"
	KindMaintenance          = "maintenance"
)

// Common errors
var (
	ErrInvalidRequest = NewAppError(http.StatusBadRequest, KindInvalidRequest, "Invalid request parameters")
	ErrUnauthorized   = NewAppError(http.StatusUnauthorized, KindUnauthorized, "Unauthorized access")
	ErrForbidden      = NewAppError(http.StatusForbidden, KindForbidden, "Access denied")
	ErrNotFound       = NewAppError(http.StatusNotFound, KindNotFound, "Resource not found")
	ErrInternalServer = NewAppError(http.StatusInternalServerError, KindInternal, "Internal server error")
	ErrRateLimit      = NewAppError(http.StatusTooManyRequests, KindRateLimit, "Rate limit exceeded")
	ErrConflict       = NewAppError(http.StatusConflict, KindConflict, "Resource already exists")
)

// Contest lifecycle errors
var (
	ErrActiveContestExists  = NewAppError(http.StatusConflict, KindActiveContestExists, "User already has an active contest")
	ErrContestNotActive     = NewAppError(http.StatusConflict, KindContestNotActive, "Contest is not active")
	ErrInsufficientProblems = NewAppError(http.StatusUnprocessableEntity, KindInsufficientProblems, "Catalog does not have enough matching problems")
	ErrTimeLimitExceeded    = NewAppError(http.StatusGone, KindTimeLimitExceeded, "Contest time limit exceeded")

	ErrContestNotFound     = NewAppError(http.StatusNotFound, KindNotFound, "Contest not found")
	ErrUserNotFound        = NewAppError(http.StatusNotFound, KindNotFound, "User not found")
	ErrProblemNotInContest = NewAppError(http.StatusNotFound, KindNotFound, "Problem not found in contest")
)

// Helper functions to create specific errors
func BadRequest(msg string) *AppError {
	return NewAppError(http.StatusBadRequest, KindInvalidRequest, msg)
}

func NotFound(msg string) *AppError {
	return NewAppError(http.StatusNotFound, KindNotFound, msg)
}

func Unauthorized(msg string) *AppError {
	return NewAppError(http.StatusUnauthorized, KindUnauthorized, msg)
}

func Forbidden(msg string) *AppError {
	return NewAppError(http.StatusForbidden, KindForbidden, msg)
}

func Conflict(msg string) *AppError {
	return NewAppError(http.StatusConflict, KindConflict, msg)
}

func Unprocessable(msg string) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, KindInsufficientProblems, msg)
}

func Gone(msg string) *AppError {
	return NewAppError(http.StatusGone, KindTimeLimitExceeded, msg)
}

func Internal(msg string) *AppError {
	return NewAppError(http.StatusInternalServerError, KindInternal, msg)
}

// As reports whether err wraps an AppError and returns it.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
