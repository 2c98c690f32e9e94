package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Me returns the principal of the session.
func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	return s.getUser(ctx, "/users/me")
}

// GetUser returns a principal by username.
func (s *Session) GetUser(ctx context.Context, username string) (*UserResponse, error) {
	return s.getUser(ctx, "/users/"+url.PathEscape(username))
}

func (s *Session) getUser(ctx context.Context, path string) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a principal. Requires the ADMIN authority.
func (s *Session) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("authsdk: encode request: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/users", bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}
