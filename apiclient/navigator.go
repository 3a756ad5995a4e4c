package apiclient

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Navigator sends the user back to the login screen after the session has
// been cleared. reason is the error that ended the session.
type Navigator interface {
	RedirectToLogin(ctx context.Context, reason error)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, reason error)

func (f NavigatorFunc) RedirectToLogin(ctx context.Context, reason error) {
	f(ctx, reason)
}

// LogNavigator only records that a login is required. It is the default for
// headless use where there is no screen to navigate.
type LogNavigator struct {
	Logger    zerolog.Logger
	LoginPath string
}

func (n LogNavigator) RedirectToLogin(_ context.Context, reason error) {
	n.Logger.Warn().Err(reason).Str("login_path", n.LoginPath).Msg("Session ended, login required")
}

// LoginRedirect forwards the first redirect and drops the rest until Arm is
// called, so a burst of failing requests navigates once.
type LoginRedirect struct {
	next  Navigator
	fired atomic.Bool
}

var _ Navigator = (*LoginRedirect)(nil)

func NewLoginRedirect(next Navigator) *LoginRedirect {
	return &LoginRedirect{next: next}
}

func (l *LoginRedirect) RedirectToLogin(ctx context.Context, reason error) {
	if !l.fired.CompareAndSwap(false, true) {
		return
	}
	l.next.RedirectToLogin(ctx, reason)
}

// Arm re-enables the redirect. Call it after a successful login.
func (l *LoginRedirect) Arm() {
	l.fired.Store(false)
}

// Fired reports whether a redirect has happened since the last Arm.
func (l *LoginRedirect) Fired() bool {
	return l.fired.Load()
}
