package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidLogin       = errors.New("invalid login request")
	ErrLoggedOut          = errors.New("logged out")
)
