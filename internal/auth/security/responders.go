package security

import (
	"net/http"
	"time"

	"github.com/tollgate-dev/tollgate/pkg/httpx"
)

// UnauthorizedMessage is sent with every 401.
const UnauthorizedMessage = "Username or Password invalid"

// ForbiddenMessage is sent with every 403.
const ForbiddenMessage = "Access denied"

// UnauthorizedBody is the 401 envelope.
type UnauthorizedBody struct {
	Timestamp int64  `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// ForbiddenBody is the 403 envelope. It carries no path.
type ForbiddenBody struct {
	Timestamp int64  `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// WriteUnauthorized answers a request that lacks a valid bearer token.
func WriteUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httpx.WriteJSON(w, http.StatusUnauthorized, UnauthorizedBody{
		Timestamp: time.Now().UnixMilli(),
		Status:    http.StatusUnauthorized,
		Error:     "Unauthorized",
		Message:   UnauthorizedMessage,
		Path:      r.URL.Path,
	})
}

// WriteForbidden answers an authenticated request that lacks the required
// authority, and failed logins.
func WriteForbidden(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusForbidden, ForbiddenBody{
		Timestamp: time.Now().UnixMilli(),
		Status:    http.StatusForbidden,
		Error:     "Forbidden",
		Message:   ForbiddenMessage,
	})
}
