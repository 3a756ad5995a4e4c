package fakebackend

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

const refreshTokenLength = 32

var errRefreshTokenNotFound = errors.New("refresh token not found")

// storedRefreshToken is the server side of a refresh token. The client only
// ever sees Token.
type storedRefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

// refreshTokens keeps one live refresh token per user. Creating a token for a
// user retires the previous one, so a token can be exchanged only once.
type refreshTokens struct {
	tokens  map[string]*storedRefreshToken
	userIDs map[string]string // user ID to token
	ttl     time.Duration     // zero never expires
	now     func() time.Time
	lock    sync.RWMutex
}

func newRefreshTokens(now func() time.Time) *refreshTokens {
	return &refreshTokens{
		tokens:  make(map[string]*storedRefreshToken),
		userIDs: make(map[string]string),
		now:     now,
	}
}

// Create generates a token for userID and retires the user's previous one.
func (rt *refreshTokens) Create(userID string) (string, error) {
	tokenBytes := make([]byte, refreshTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	rt.lock.Lock()
	defer rt.lock.Unlock()
	if existing, ok := rt.userIDs[userID]; ok {
		delete(rt.tokens, existing)
	}
	rt.tokens[token] = &storedRefreshToken{Token: token, UserID: userID, Iat: rt.now()}
	rt.userIDs[userID] = token
	return token, nil
}

// Consume validates token and retires it. The caller issues the replacement.
func (rt *refreshTokens) Consume(token string) (string, error) {
	rt.lock.Lock()
	defer rt.lock.Unlock()
	stored, ok := rt.tokens[token]
	if !ok {
		return "", errRefreshTokenNotFound
	}
	delete(rt.tokens, token)
	delete(rt.userIDs, stored.UserID)
	if rt.ttl > 0 && rt.now().Sub(stored.Iat) > rt.ttl {
		return "", fmt.Errorf("refresh token expired at %s", stored.Iat.Add(rt.ttl).Format(time.RFC3339))
	}
	return stored.UserID, nil
}

// Revoke removes the user's live token, if any.
func (rt *refreshTokens) Revoke(userID string) {
	rt.lock.Lock()
	defer rt.lock.Unlock()
	if token, ok := rt.userIDs[userID]; ok {
		delete(rt.tokens, token)
		delete(rt.userIDs, userID)
	}
}

// Current returns the user's live token or "".
func (rt *refreshTokens) Current(userID string) string {
	rt.lock.RLock()
	defer rt.lock.RUnlock()
	return rt.userIDs[userID]
}

// SetTTL changes how long tokens stay exchangeable, including tokens already issued.
func (rt *refreshTokens) SetTTL(ttl time.Duration) {
	rt.lock.Lock()
	defer rt.lock.Unlock()
	rt.ttl = ttl
}
