// Package fakebackend is an in-process stand-in for the tax-appeal REST API.
// It issues HS256 access tokens and rotating refresh tokens the way the real
// backend does (one live refresh token per user, rotated on every exchange)
// and lets tests expire tokens, fail refreshes and register resource routes.
package fakebackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	LoginPath   = "/api/v1/auth/login"
	RefreshPath = "/api/v1/auth/refresh-token"
	LogoutPath  = "/api/v1/auth/logout"
)

// User is a staff account known to the backend.
type User struct {
	ID        string
	Email     string
	Password  string
	FullNames string
	Role      string
	IsProxy   bool
}

// Call records one request as received.
type Call struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

// Backend is an httptest server plus the token state behind it.
type Backend struct {
	*httptest.Server

	mux     *http.ServeMux
	access  *accessTokens
	refresh *refreshTokens

	lock          sync.Mutex
	users         map[string]*User // email -> user
	calls         []Call
	refreshCalls  int
	refreshStatus int
	refreshDelay  time.Duration
}

// New starts a backend. Close it with Close.
func New() *Backend {
	b := &Backend{
		mux:     http.NewServeMux(),
		access:  newAccessTokens(time.Now),
		refresh: newRefreshTokens(time.Now),
		users:   make(map[string]*User),
	}
	b.mux.HandleFunc("POST "+LoginPath, b.handleLogin)
	b.mux.HandleFunc("POST "+RefreshPath, b.handleRefresh)
	b.mux.HandleFunc("POST "+LogoutPath, b.RequireAuth(b.handleLogout))
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	b.calls = append(b.calls, Call{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
	})
	b.lock.Unlock()
	b.mux.ServeHTTP(w, r)
}

// AddUser registers a staff account, generating an ID when empty.
func (b *Backend) AddUser(u User) *User {
	b.lock.Lock()
	defer b.lock.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	b.users[u.Email] = &u
	return &u
}

// Handle registers an unauthenticated route.
func (b *Backend) Handle(pattern string, h http.HandlerFunc) {
	b.mux.HandleFunc(pattern, h)
}

// HandleAuth registers a route that requires a live bearer access token.
func (b *Backend) HandleAuth(pattern string, h func(w http.ResponseWriter, r *http.Request, user *User)) {
	b.mux.HandleFunc(pattern, b.RequireAuth(h))
}

// IssueSession mints a token pair for email without going through login.
func (b *Backend) IssueSession(email string) (accessToken, refreshToken string) {
	b.lock.Lock()
	u := b.users[email]
	b.lock.Unlock()
	if u == nil {
		panic("fakebackend: unknown user " + email)
	}
	access, refresh, err := b.issue(u)
	if err != nil {
		panic("fakebackend: " + err.Error())
	}
	return access, refresh
}

// ExpireAccessTokens invalidates every access token issued so far, so the
// next authenticated request answers 401. Refresh tokens stay valid.
func (b *Backend) ExpireAccessTokens() {
	b.access.ExpireAll()
}

// ExpireRefreshTokensAfter makes refresh tokens older than ttl unusable.
// Zero restores tokens that never expire.
func (b *Backend) ExpireRefreshTokensAfter(ttl time.Duration) {
	b.refresh.SetTTL(ttl)
}

// FailRefresh makes the refresh endpoint answer status. Zero restores normal
// behaviour.
func (b *Backend) FailRefresh(status int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.refreshStatus = status
}

// SlowRefresh delays every refresh response by d.
func (b *Backend) SlowRefresh(d time.Duration) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.refreshDelay = d
}

// RefreshCalls returns how many refresh exchanges were attempted.
func (b *Backend) RefreshCalls() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.refreshCalls
}

// CurrentRefreshToken returns the live refresh token for a user.
func (b *Backend) CurrentRefreshToken(userID string) string {
	return b.refresh.Current(userID)
}

// Calls returns every request received for path, in arrival order.
func (b *Backend) Calls(path string) []Call {
	b.lock.Lock()
	defer b.lock.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// RequireAuth wraps h with bearer token validation.
func (b *Backend) RequireAuth(h func(w http.ResponseWriter, r *http.Request, user *User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user := b.authenticate(raw)
		if user == nil {
			writeError(w, http.StatusUnauthorized, "access token expired")
			return
		}
		h(w, r, user)
	}
}

func (b *Backend) authenticate(raw string) *User {
	userID, err := b.access.Validate(raw)
	if err != nil {
		return nil
	}
	return b.userByID(userID)
}

func (b *Backend) userByID(id string) *User {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, u := range b.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID           string `json:"id"`
	FullNames    string `json:"fullNames"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IsProxy      bool   `json:"isProxy"`
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed login request")
		return
	}

	b.lock.Lock()
	u := b.users[req.Email]
	b.lock.Unlock()
	if u == nil || u.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	access, refresh, err := b.issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, loginResponse{
		ID:           u.ID,
		FullNames:    u.FullNames,
		Email:        u.Email,
		Role:         u.Role,
		AccessToken:  access,
		RefreshToken: refresh,
		IsProxy:      u.IsProxy,
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	b.refreshCalls++
	status, delay := b.refreshStatus, b.refreshDelay
	b.lock.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		writeError(w, status, "refresh rejected")
		return
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh token required")
		return
	}

	userID, err := b.refresh.Consume(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid refresh token")
		return
	}
	user := b.userByID(userID)
	if user == nil {
		writeError(w, http.StatusBadRequest, "invalid refresh token")
		return
	}
	access, refresh, err := b.issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (b *Backend) handleLogout(w http.ResponseWriter, _ *http.Request, user *User) {
	b.refresh.Revoke(user.ID)
	b.access.Revoke(user.ID)
	WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// issue mints a new pair. Creating the refresh token retires the user's
// previous one.
func (b *Backend) issue(u *User) (string, string, error) {
	access, err := b.access.Create(u)
	if err != nil {
		return "", "", err
	}
	refresh, err := b.refresh.Create(u.ID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
