package credentials

import (
	"context"
	"strconv"

	"github.com/jrsteele09/taxappeal-client/internal/errors"
)

// Session is an authenticated staff member as seen by the client.
type Session struct {
	AccessToken  string // Short-lived bearer credential
	RefreshToken string // Exchanged for a new pair when the access token expires
	StaffID      string
	FullNames    string
	Role         string
	IsProxy      bool // Temporary delegate login acting for a committee member
}

// LoggedIn reports whether the session carries a usable token pair.
func (s *Session) LoggedIn() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != ""
}

func (s *Session) values() map[Key]string {
	values := map[Key]string{
		AccessTokenKey:  s.AccessToken,
		RefreshTokenKey: s.RefreshToken,
		StaffIDKey:      s.StaffID,
		NameKey:         s.FullNames,
		RoleKey:         s.Role,
		ProxyKey:        "",
	}
	// The flag is present only for delegate logins, never stored as "false".
	if s.IsProxy {
		values[ProxyKey] = "true"
	}
	return values
}

// SaveSession replaces the whole session in one SetAll call.
func SaveSession(ctx context.Context, store Store, s *Session) error {
	if s == nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "nil session")
	}
	if err := store.SetAll(ctx, s.values()); err != nil {
		return errors.Wrapf(err, "saving session")
	}
	return nil
}

// LoadSession reads every session key. It returns ErrNotLoggedIn when neither
// token is present.
func LoadSession(ctx context.Context, store Store) (*Session, error) {
	values := make(map[Key]string, len(Keys))
	for _, k := range Keys {
		v, err := store.Get(ctx, k)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", k)
		}
		values[k] = v
	}

	if values[AccessTokenKey] == "" && values[RefreshTokenKey] == "" {
		return nil, errors.ErrNotLoggedIn
	}

	isProxy, _ := strconv.ParseBool(values[ProxyKey])
	return &Session{
		AccessToken:  values[AccessTokenKey],
		RefreshToken: values[RefreshTokenKey],
		StaffID:      values[StaffIDKey],
		FullNames:    values[NameKey],
		Role:         values[RoleKey],
		IsProxy:      isProxy,
	}, nil
}

// SaveTokenPair overwrites the access and refresh tokens together.
func SaveTokenPair(ctx context.Context, store Store, accessToken, refreshToken string) error {
	return store.SetAll(ctx, map[Key]string{
		AccessTokenKey:  accessToken,
		RefreshTokenKey: refreshToken,
	})
}
