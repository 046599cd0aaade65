package resumeauth

import (
	"errors"
	"net/http"
)

// Kind is the failure class of an [Error]. Each kind maps to one HTTP status.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindAuthentication  Kind = "authentication"
	KindAuthorization   Kind = "authorization"
	KindNotFound        Kind = "not_found"
	KindExternalService Kind = "external_service"
	KindRateLimit       Kind = "rate_limit"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

// Error is the failure type returned by every Engine operation. Code is stable and
// machine readable; Message is safe to show to end users.
type Error struct {
	Code    string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so wrapped errors
// still match the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus returns the status code a transport layer should answer with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindExternalService:
		return http.StatusBadGateway
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(code string, kind Kind, msg string) *Error {
	return &Error{Code: code, Kind: kind, Message: msg}
}

var (
	ErrValidation            = newError("VALIDATION_ERROR", KindValidation, "invalid request")
	ErrBlockedDomain         = newError("BLOCKED_DOMAIN", KindValidation, "email domain is not allowed")
	ErrRoleNotAllowed        = newError("ROLE_NOT_ALLOWED", KindAuthorization, "role cannot be requested at signup")
	ErrUserExists            = newError("USER_EXISTS", KindConflict, "an account with this email already exists")
	ErrRegistrationRateLimit = newError("REGISTRATION_RATE_LIMIT", KindRateLimit, "too many registration attempts, try again later")
	ErrSignInRateLimit       = newError("SIGNIN_RATE_LIMIT", KindRateLimit, "too many sign-in attempts, try again later")
	ErrResetRateLimit        = newError("PASSWORD_RESET_RATE_LIMIT", KindRateLimit, "too many password reset attempts, try again later")
	ErrInvalidCredentials    = newError("INVALID_CREDENTIALS", KindAuthentication, "invalid email or password")
	ErrEmailNotConfirmed     = newError("EMAIL_NOT_CONFIRMED", KindAuthorization, "email address has not been confirmed")
	ErrTokenRevoked          = newError("TOKEN_REVOKED", KindAuthentication, "token has been revoked")
	ErrTokenExpired          = newError("TOKEN_EXPIRED", KindAuthentication, "token has expired")
	ErrInvalidToken          = newError("INVALID_TOKEN", KindAuthentication, "invalid token")
	ErrSessionNotFound       = newError("SESSION_NOT_FOUND", KindAuthentication, "session not found or expired")
	ErrAccountSuspended      = newError("ACCOUNT_SUSPENDED", KindAuthorization, "account is suspended")
	ErrAccountInactive       = newError("ACCOUNT_INACTIVE", KindAuthorization, "account is not active")
	ErrAdminRequired         = newError("ADMIN_REQUIRED", KindAuthorization, "administrator access required")
	ErrConfiguration         = newError("CONFIGURATION_ERROR", KindInternal, "service is not configured for this operation")
	ErrInvalidVerification   = newError("INVALID_VERIFICATION_TYPE", KindValidation, "unsupported verification type")
	ErrWeakPassword          = newError("WEAK_PASSWORD", KindValidation, "password does not meet the policy")
	ErrExternalService       = newError("EXTERNAL_SERVICE_ERROR", KindExternalService, "identity provider request failed")
	ErrProfileCreation       = newError("PROFILE_CREATION_FAILED", KindInternal, "could not create profile")
	ErrProfileNotFound       = newError("PROFILE_NOT_FOUND", KindNotFound, "profile not found")
	ErrStateUnavailable      = newError("STATE_UNAVAILABLE", KindUnavailable, "session state is unavailable")
	ErrInternal              = newError("INTERNAL_ERROR", KindInternal, "internal error")
)

// wrap returns a copy of sentinel carrying cause. errors.Is(result, sentinel) holds.
func wrap(sentinel *Error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &Error{Code: sentinel.Code, Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

// withMessage returns a copy of sentinel with a more specific user-facing message.
func withMessage(sentinel *Error, msg string) error {
	return &Error{Code: sentinel.Code, Kind: sentinel.Kind, Message: msg}
}

// AsError extracts the *Error from err. Errors that are not *Error are reported as
// INTERNAL_ERROR wrapping err.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: ErrInternal.Code, Kind: ErrInternal.Kind, Message: ErrInternal.Message, Err: err}
}
