package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the tollgate authentication service. It performs
// unauthenticated calls and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// RefreshSkew is how long before access token expiry a Session
	// refreshes. Default: 30s
	RefreshSkew time.Duration
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		RefreshSkew: 30 * time.Second,
	}
}

// Login authenticates with username and password and returns a Session.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*Session, error) {
	tok, err := c.LoginTokens(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, tok), nil
}

// NewSessionFromTokens resumes a session from a stored token pair.
func (c *SDKClient) NewSessionFromTokens(tok TokenResponse) *Session {
	return newSession(c, &tok)
}
