package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GetLiveness calls /livez.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness calls /readyz. A degraded service answers 503 with a body, so
// the response is returned together with an *APIError in that case.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("authsdk: read response: %w", err)
	}

	var health HealthResponse
	if err := json.Unmarshal(raw, &health); err != nil {
		return nil, parseErrorResponse(resp, raw)
	}
	if resp.StatusCode != http.StatusOK {
		return &health, &APIError{StatusCode: resp.StatusCode, Body: ValidationError{
			StandardError: StandardError{Status: resp.StatusCode, Error: health.Status},
		}}
	}
	return &health, nil
}
