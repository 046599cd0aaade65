package provider

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicate          = errors.New("provider: account already exists")
	ErrWeakPassword       = errors.New("provider: password does not meet policy")
	ErrInvalidCredentials = errors.New("provider: invalid credentials")
	ErrEmailNotConfirmed  = errors.New("provider: email not confirmed")
	ErrInvalidToken       = errors.New("provider: invalid or expired token")
	ErrNotFound           = errors.New("provider: account not found")
	ErrUnavailable        = errors.New("provider: unavailable")
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider responded %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider responded %d: %s", e.Status, e.Message)
}

// Unwrap returns the sentinel the response was classified as, if any.
func (e *APIError) Unwrap() error {
	return e.kind
}
