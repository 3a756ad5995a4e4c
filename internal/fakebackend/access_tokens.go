package fakebackend

import (
	"errors"
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errAccessTokenRevoked = errors.New("access token revoked")

// accessTokens signs HS256 access tokens and remembers which are live, so
// tests can expire them before their exp claim.
type accessTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	lock sync.Mutex
	live map[string]string // jti to user ID
}

func newAccessTokens(now func() time.Time) *accessTokens {
	return &accessTokens{
		secret: []byte(uuid.New().String()),
		ttl:    15 * time.Minute,
		now:    now,
		live:   make(map[string]string),
	}
}

// Create issues an access token carrying the claims the staff client reads.
func (at *accessTokens) Create(u *User) (string, error) {
	now := at.now()
	jti := uuid.New().String()
	claims := jwtlib.MapClaims{
		"sub":      u.ID,
		"email":    u.Email,
		"name":     u.FullNames,
		"role":     u.Role,
		"is_proxy": u.IsProxy,
		"iat":      now.Unix(),
		"exp":      now.Add(at.ttl).Unix(),
		"jti":      jti,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(at.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	at.lock.Lock()
	defer at.lock.Unlock()
	at.live[jti] = u.ID
	return token, nil
}

// Validate checks the signature, exp and that the token is still live, and
// returns the user ID it was issued to.
func (at *accessTokens) Validate(raw string) (string, error) {
	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(*jwtlib.Token) (any, error) {
		return at.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithTimeFunc(at.now))
	if err != nil {
		return "", err
	}
	jti, _ := claims["jti"].(string)

	at.lock.Lock()
	defer at.lock.Unlock()
	userID, ok := at.live[jti]
	if !ok {
		return "", errAccessTokenRevoked
	}
	return userID, nil
}

// ExpireAll revokes every token issued so far.
func (at *accessTokens) ExpireAll() {
	at.lock.Lock()
	defer at.lock.Unlock()
	clear(at.live)
}

// Revoke drops every live token of one user.
func (at *accessTokens) Revoke(userID string) {
	at.lock.Lock()
	defer at.lock.Unlock()
	for jti, id := range at.live {
		if id == userID {
			delete(at.live, jti)
		}
	}
}
