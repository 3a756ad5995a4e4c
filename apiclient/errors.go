package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/taxappeal-client/internal/errors"
)

// ErrNoRefreshToken is returned, after a forced logout, when a request was
// rejected as unauthenticated and the store holds no refresh token.
var ErrNoRefreshToken = errors.ErrNoRefreshToken

// ErrNotLoggedIn is returned by TokenSource when the store holds no tokens,
// and by a request whose refresh finished after the session was ended.
var ErrNotLoggedIn = errors.ErrNotLoggedIn

// StatusError is a non-2xx/3xx response handed back to the caller.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	msg := e.Message()
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Message extracts a human readable message from the body. The backend
// answers with {"message": ...} or {"error": ...}, sometimes plain text.
func (e *StatusError) Message() string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	text := strings.TrimSpace(string(e.Body))
	if len(text) > 200 || strings.HasPrefix(text, "{") {
		return ""
	}
	return text
}

// RefreshError means the refresh-token exchange itself failed. The session
// has been cleared by the time a caller sees it.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return "refresh token exchange failed: " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// SessionEnded reports whether err means the session is gone and the user
// has to log in again.
func SessionEnded(err error) bool {
	var re *RefreshError
	return errors.Is(err, ErrNoRefreshToken) || errors.Is(err, ErrNotLoggedIn) || errors.As(err, &re)
}
