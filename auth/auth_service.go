// Package auth logs staff members in and out and reports who is logged in.
// Token refresh itself lives in apiclient; this package only starts and ends
// sessions.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/taxappeal-client/apiclient"
	"github.com/jrsteele09/taxappeal-client/credentials"
	"github.com/jrsteele09/taxappeal-client/internal/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoginResponse is what the backend returns for a successful login.
type LoginResponse struct {
	ID           string `json:"id"`
	FullNames    string `json:"fullNames"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IsProxy      bool   `json:"isProxy"`
}

// Identity is the stored session together with what its access token says.
type Identity struct {
	Session *credentials.Session
	Claims  *credentials.AccessClaims // nil when the token is not a readable JWT
}

// ExpiresIn returns how long the access token has left at now, zero when it
// has expired or carries no expiry.
func (i *Identity) ExpiresIn(now time.Time) time.Duration {
	if i.Claims == nil || i.Claims.ExpiresAt.IsZero() {
		return 0
	}
	return max(i.Claims.ExpiresAt.Sub(now), 0)
}

// Service provides login, logout and session lookup.
type Service struct {
	client  *apiclient.Client
	store   credentials.Store
	logger  zerolog.Logger
	nowTime func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service that shares client's credential store.
func NewService(client *apiclient.Client, opts ...ServiceOption) *Service {
	s := &Service{
		client:  client,
		store:   client.Store(),
		logger:  log.Logger,
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login exchanges email and password for a session and stores all of it.
func (s *Service) Login(ctx context.Context, email, password string) (*credentials.Session, error) {
	req := &LoginRequest{Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := s.client.Post(ctx, apiclient.LoginPath, req, &resp); err != nil {
		// A rejected login answers 401, which the client treats like any other:
		// it refreshes and retries, or ends the session when it cannot.
		if apiclient.IsStatus(err, http.StatusUnauthorized) || apiclient.IsStatus(err, http.StatusBadRequest) ||
			apiclient.SessionEnded(err) {
			return nil, pkgerrors.Wrap(ErrInvalidCredentials, "[Service.Login]")
		}
		return nil, pkgerrors.Wrap(err, "[Service.Login] login request failed")
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, errors.Wrapf(errors.ErrInvalidResponse, "login response is missing a token")
	}

	session := &credentials.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		StaffID:      resp.ID,
		FullNames:    resp.FullNames,
		Role:         resp.Role,
		IsProxy:      resp.IsProxy,
	}
	if err := s.client.StartSession(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(err, "[Service.Login] storing session")
	}

	s.logger.Info().
		Str("staff_id", session.StaffID).
		Str("role", session.Role).
		Bool("proxy", session.IsProxy).
		Msg("Logged in")
	return session, nil
}

// Logout tells the backend the session is over, then clears it locally and
// navigates to login. The backend call is always made and is best effort:
// its failure is only logged. Without a refresh token a 401 from it is not
// refreshed, so logging out of an empty session ends quietly.
func (s *Service) Logout(ctx context.Context) {
	refresh, err := s.store.Get(ctx, credentials.RefreshTokenKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Reading refresh token for logout")
	}
	_, err = s.client.Do(ctx, &apiclient.Request{
		Method:    http.MethodPost,
		Path:      apiclient.LogoutPath,
		NoRefresh: refresh == "",
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Logout request failed, clearing local session anyway")
	}
	s.client.Logout(ctx, ErrLoggedOut)
}

// Current returns the stored session, or errors.ErrNotLoggedIn.
func (s *Service) Current(ctx context.Context) (*credentials.Session, error) {
	return credentials.LoadSession(ctx, s.store)
}

// Whoami returns the stored session and the claims of its access token.
func (s *Service) Whoami(ctx context.Context) (*Identity, error) {
	session, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	id := &Identity{Session: session}
	if claims, err := credentials.ParseAccessToken(session.AccessToken); err == nil {
		id.Claims = claims
	} else {
		s.logger.Debug().Err(err).Msg("Access token is not a readable JWT")
	}
	return id, nil
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.nowTime()
}
