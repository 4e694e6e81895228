// Package session holds the authenticated user's token pair for the
// lifetime of the process. Tokens are kept in memory only.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Store owns the current access/refresh token pair and the
// session-invalid signal. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	token     *oauth2.Token
	invalid   bool
	onInvalid func()
}

// New constructs a Store. onInvalid, if non-nil, fires exactly once when
// the session becomes unrecoverable (refresh failed); the view boundary
// uses it to redirect to login.
func New(onInvalid func()) *Store {
	return &Store{onInvalid: onInvalid}
}

// SetTokens installs a freshly issued token pair and clears any previous
// invalid state.
func (s *Store) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       accessExpiry(access),
	}
	s.invalid = false
}

// UpdateAccess replaces only the access token after a successful refresh.
func (s *Store) UpdateAccess(access string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		s.token = &oauth2.Token{TokenType: "Bearer"}
	}
	s.token.AccessToken = access
	s.token.Expiry = accessExpiry(access)
}

// AccessToken returns the current access token, if any.
func (s *Store) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || s.token.AccessToken == "" {
		return "", false
	}
	return s.token.AccessToken, true
}

// RefreshToken returns the stored refresh token, if any.
func (s *Store) RefreshToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || s.token.RefreshToken == "" {
		return "", false
	}
	return s.token.RefreshToken, true
}

// Authenticated reports whether a usable session exists.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil && s.token.AccessToken != "" && !s.invalid
}

// Invalid reports whether the session was marked unrecoverable.
func (s *Store) Invalid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalid
}

// Clear drops the stored tokens without signalling invalidation (logout).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
}

// Invalidate clears the tokens and fires the session-invalid signal.
// Repeated calls signal at most once.
func (s *Store) Invalidate() {
	s.mu.Lock()
	already := s.invalid
	s.invalid = true
	s.token = nil
	cb := s.onInvalid
	s.mu.Unlock()

	if !already && cb != nil {
		cb()
	}
}

// accessExpiry peeks at the JWT exp claim without verifying the
// signature. Verification is the server's job; the client only wants the
// expiry hint. A zero time means the expiry is unknown.
func accessExpiry(access string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
