package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// LoginTokens calls POST /auth/login and returns the raw token pair.
func (c *SDKClient) LoginTokens(ctx context.Context, username, password string) (*TokenResponse, error) {
	body, err := json.Marshal(LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("authsdk: encode login request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}

	var tok TokenResponse
	if err := decodeJSON(resp, &tok, http.StatusOK); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Refresh calls PUT /auth/refresh/{username} with the refresh token as the
// bearer credential.
func (c *SDKClient) Refresh(ctx context.Context, username, refreshToken string) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, "/auth/refresh/"+url.PathEscape(username), nil, map[string]string{
		"Authorization": "Bearer " + refreshToken,
	})
	if err != nil {
		return nil, err
	}

	var tok TokenResponse
	if err := decodeJSON(resp, &tok, http.StatusOK); err != nil {
		return nil, err
	}
	return &tok, nil
}
