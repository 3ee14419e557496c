package auth

import (
	"errors"

	"github.com/redmonkez12/taskauth/internal/user"
)

var (
	// ErrInvalidInput is matched by every registration validation error.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = user.ErrDuplicateEmail
	// ErrAuthenticationFailed covers both unknown email and wrong password.
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrStorageUnavailable   = errors.New("storage unavailable")

	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenMissingFields = errors.New("token is missing required claims")

	// ErrUnauthenticated is the only error the current-user resolver exposes
	// for credential problems; the cause is wrapped for logging.
	ErrUnauthenticated = errors.New("not authenticated")

	ErrMissingSecret        = errors.New("token signing secret is empty")
	ErrUnsupportedAlgorithm = errors.New("unsupported token algorithm")
)

// inputError is a user-facing validation message that matches ErrInvalidInput.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrInvalidInput }

var (
	ErrEmailRequired      error = &inputError{"email is required"}
	ErrInvalidEmailFormat error = &inputError{"invalid email format"}
	ErrPasswordRequired   error = &inputError{"password is required"}
	ErrPasswordTooShort   error = &inputError{"password must be at least 8 characters"}
	ErrPasswordTooLong    error = &inputError{"password must be at most 128 characters"}
	ErrPasswordTooWeak    error = &inputError{"password must contain at least one letter and one digit"}
)
