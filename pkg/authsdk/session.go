package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Session is an authenticated session. Its methods refresh the access token
// when it is about to expire.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	username     string
	accessToken  string
	refreshToken string
	refreshAt    time.Time
}

func newSession(client *SDKClient, tok *TokenResponse) *Session {
	s := &Session{client: client}
	s.store(tok)
	return s
}

// store must be called with mu held, or before the session is shared.
func (s *Session) store(tok *TokenResponse) {
	s.username = tok.Username
	s.accessToken = tok.AccessToken
	s.refreshToken = tok.RefreshToken
	s.refreshAt = tok.Expiration.Add(-s.client.RefreshSkew)
}

// getValidToken returns the access token, refreshing it first if needed.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.refreshAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed meanwhile.
	if time.Now().Before(s.refreshAt) {
		return s.accessToken, nil
	}

	if s.refreshToken == "" {
		return "", errors.New("access token expired and no refresh token available")
	}

	tok, err := s.client.Refresh(ctx, s.username, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("authsdk: refresh: %w", err)
	}
	s.store(tok)

	return s.accessToken, nil
}

// Refresh forces a token refresh.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.refreshAt = time.Time{}
	s.mu.Unlock()

	_, err := s.getValidToken(ctx)
	return err
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}
