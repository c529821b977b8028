package backendsdk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryBuffer is subtracted from the token lifetime so a session refreshes
// shortly before the backend would reject its access token.
const expiryBuffer = 30 * time.Second

// Session is an authenticated backend session with automatic token refresh.
// Methods that need a valid access token refresh transparently; a refresh
// replaces both tokens, matching the backend's rotating refresh tokens.
type Session struct {
	auth *Auth

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         User
}

func newSession(auth *Auth, resp *tokenResponse) *Session {
	return &Session{
		auth:         auth,
		accessToken:  resp.AccessToken,
		refreshToken: resp.RefreshToken,
		expiresAt:    expiryFrom(resp),
		user:         resp.User,
	}
}

// expiryFrom derives the refresh deadline from the grant response, falling
// back to the access token's own exp claim when expires_in is absent.
func expiryFrom(resp *tokenResponse) time.Time {
	if resp.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - expiryBuffer)
	}

	claims := jwt.MapClaims{}
	// The signing secret is server-side only; like the backend's own client
	// libraries we decode without verifying and let the backend reject
	// tampered tokens.
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.Add(-expiryBuffer)
		}
	}
	return time.Now().Add(time.Minute)
}

// User returns the backend account this session authenticates.
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// AccessToken returns the current access token without checking expiry.
// Prefer Token, which refreshes when needed.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token. The gateway persists it to
// resume the session after a restart.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Token returns a valid access token, refreshing it first if it is at or
// past its expiry buffer.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	token, refreshed, err := s.refresh(ctx)
	if err != nil {
		return "", err
	}
	if refreshed {
		// Emitted outside the session lock so listeners may read session state.
		s.auth.emit(EventTokenRefreshed, s)
	}

	return token, nil
}

func (s *Session) refresh(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have refreshed while we waited for the write lock.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, false, nil
	}

	if s.refreshToken == "" {
		return "", false, fmt.Errorf("access token expired and no refresh token available")
	}

	resp, err := s.auth.refreshGrant(ctx, s.refreshToken)
	if err != nil {
		return "", false, fmt.Errorf("failed to refresh session: %w", err)
	}

	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.expiresAt = expiryFrom(resp)
	s.user = resp.User

	return s.accessToken, true, nil
}

// setUser replaces the cached account data after an update.
func (s *Session) setUser(u User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}
