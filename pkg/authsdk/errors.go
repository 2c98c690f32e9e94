package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tollgate-dev/tollgate/pkg/httpx"
)

// StandardError is the error envelope of the service. Path is omitted by the
// 403 responder.
type StandardError struct {
	Timestamp int64  `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path,omitempty"`
}

// NewStandardError stamps an envelope with the current time.
func NewStandardError(status int, errText, message, path string) *StandardError {
	return &StandardError{
		Timestamp: time.Now().UnixMilli(),
		Status:    status,
		Error:     errText,
		Message:   message,
		Path:      path,
	}
}

// WriteError writes the envelope with its own status code.
func (e *StandardError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.Status, e)
}

// ValidationError is a 400 envelope listing the failed fields.
type ValidationError struct {
	StandardError
	Errors []FieldMessage `json:"errors"`
}

// NewValidationError builds the envelope for failed request validation.
func NewValidationError(path string, fields []FieldMessage) *ValidationError {
	return &ValidationError{
		StandardError: *NewStandardError(http.StatusBadRequest, "Validation error", "Error validation fields", path),
		Errors:        fields,
	}
}

func (e *ValidationError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.Status, e)
}

// APIError is returned by the client for any non-success response.
type APIError struct {
	StatusCode int
	Body       ValidationError
}

func (e *APIError) Error() string {
	if e.Body.Message == "" {
		return fmt.Sprintf("authsdk: HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("authsdk: HTTP %d: %s: %s", e.StatusCode, e.Body.Error, e.Body.Message)
}

// parseErrorResponse turns a non-success response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &apiErr.Body); err != nil {
		apiErr.Body = ValidationError{}
	}
	if apiErr.Body.Status == 0 {
		apiErr.Body.Status = resp.StatusCode
	}
	return apiErr
}
