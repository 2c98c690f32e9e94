package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const jsonContentType = "application/json"

// url joins the base URL and path.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// send builds and executes a request. A non-empty authorization is sent as
// the Authorization header.
func (c *SDKClient) send(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
	authorization string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("authsdk: build %s %s: %w", method, path, err)
	}

	req.Header.Set("Accept", jsonContentType)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authsdk: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// doRequest sends an unauthenticated request.
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	return c.send(ctx, method, path, body, headers, "")
}

// doAuthRequest sends a request with the session's access token, refreshing
// the pair first when the token is close to expiry.
func (s *Session) doAuthRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.send(ctx, method, path, body, headers, "Bearer "+token)
}

// decodeJSON closes resp. Any status other than want becomes an *APIError.
func decodeJSON(resp *http.Response, target any, want int) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("authsdk: read response: %w", err)
	}
	if resp.StatusCode != want {
		if err := parseErrorResponse(resp, raw); err != nil {
			return err
		}
		return fmt.Errorf("authsdk: unexpected status %d, want %d", resp.StatusCode, want)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("authsdk: decode response: %w", err)
	}
	return nil
}
