package errors

import (
	"errors"
	"fmt"
)

// Common error types for the staff API client
var (
	// Session errors
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrInvalidToken   = errors.New("invalid token")

	// Credential store errors
	ErrStoreUnavailable = errors.New("credential store unavailable")
	ErrStoreCorrupt     = errors.New("credential store corrupt")
	ErrInvalidKey       = errors.New("invalid credential key")

	// Request errors
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidResponse = errors.New("invalid response")

	// General errors
	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
