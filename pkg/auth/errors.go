package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Store sentinels. Implementations of AccountStore must return these so the
// service can tell absence and uniqueness violations apart from failures.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

// Kind classifies an Error for mapping onto a response status.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindAuthorization
	KindThrottled
	KindExpired
	KindConflict
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindThrottled:
		return "throttled"
	case KindExpired:
		return "expired"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Stable error codes returned to clients.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAuthRequired       = "AUTHENTICATION_REQUIRED"
	CodeForbidden          = "FORBIDDEN"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	CodeAlreadyVerified    = "EMAIL_ALREADY_VERIFIED"
	CodeInvalidCode        = "INVALID_VERIFICATION_CODE"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeCooldown           = "RESEND_COOLDOWN"
	CodeRateLimited        = "RATE_LIMITED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	CodeConflict           = "CONFLICT"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidCSRF        = "INVALID_CSRF_TOKEN"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is the failure type returned by the service layer. Message and
// Details are safe to show to clients; the wrapped cause is not.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// StatusCode maps the error kind onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindExpired:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindThrottled:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Payload is the JSON body sent to the client.
func (e *Error) Payload() map[string]interface{} {
	body := map[string]interface{}{
		"error": e.Message,
		"code":  e.Code,
	}
	for k, v := range e.Details {
		body[k] = v
	}
	return body
}

// WithDetail returns e with an extra client-visible field.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *Error) withCode(code string) *Error {
	e.Code = code
	return e
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NewValidationError reports malformed or policy-violating input.
func NewValidationError(message string, reasons ...string) *Error {
	e := newError(KindValidation, CodeValidation, message)
	if len(reasons) > 0 {
		e.WithDetail("details", reasons)
	}
	return e
}

// NewAuthenticationError reports missing or wrong credentials.
func NewAuthenticationError(code, message string) *Error {
	return newError(KindAuthentication, code, message)
}

// NewAuthorizationError reports an authenticated caller that may not proceed.
func NewAuthorizationError(code, message string) *Error {
	return newError(KindAuthorization, code, message)
}

// NewThrottledError reports a rate or attempt limit being hit.
func NewThrottledError(code, message string) *Error {
	return newError(KindThrottled, code, message)
}

// NewExpiredTokenError reports a verification code or reset token past its expiry.
func NewExpiredTokenError(message string) *Error {
	return newError(KindExpired, CodeTokenExpired, message)
}

// NewConflictError reports a uniqueness violation.
func NewConflictError(message string) *Error {
	return newError(KindConflict, CodeConflict, message)
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(message string) *Error {
	return newError(KindNotFound, CodeNotFound, message)
}

// NewInternalError wraps an unexpected failure. The cause is kept for logging only.
func NewInternalError(op string, cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: "Internal server error",
		cause:   fmt.Errorf("%s: %w", op, cause),
	}
}

