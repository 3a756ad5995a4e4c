package auth

import (
	"fmt"
	"net/mail"
	"strings"
)

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the request before it is sent.
func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidLogin)
	}
	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return fmt.Errorf("%w: %q is not an email address", ErrInvalidLogin, r.Email)
	}
	if r.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidLogin)
	}
	return nil
}
