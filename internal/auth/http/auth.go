package http

import (
	"net/http"
	"strings"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/service"
	"github.com/tollgate-dev/tollgate/pkg/authsdk"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
)

func tokenResponse(p domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		Username:      p.Username,
		Authenticated: p.Authenticated,
		Created:       p.CreatedAt,
		Expiration:    p.ExpiresAt,
		AccessToken:   p.AccessToken,
		RefreshToken:  p.RefreshToken,
	}
}

type LoginHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP exchanges a username and password for a token pair.
//
//	@Summary		Log in
//	@Description	Authenticates with username and password and returns an access token and a refresh token.
//	@Description	Every credential failure is answered with the same 403.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest		true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse		"Token pair"
//	@Failure		400		{object}	authsdk.ValidationError		"Missing username or password"
//	@Failure		403		{object}	authsdk.StandardError		"Bad credentials"
//	@Failure		429		{object}	authsdk.StandardError		"Too many attempts"
//	@Router			/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w, r, err)
		return
	}
	if errs := req.Validate(); errs != nil {
		writeValidation(w, r, errs)
		return
	}

	pair, err := h.AuthService.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

type RefreshHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP exchanges a refresh token for a new token pair.
//
//	@Summary		Refresh tokens
//	@Description	Issues a new token pair from the refresh token sent in the Authorization header, with or without the "Bearer " prefix.
//	@Tags			Auth
//	@Produce		json
//	@Param			username		path		string					true	"Username the refresh token was issued to"
//	@Param			Authorization	header		string					true	"Refresh token"
//	@Success		200				{object}	authsdk.TokenResponse	"Token pair"
//	@Failure		401				{object}	authsdk.StandardError	"Invalid or expired refresh token"
//	@Failure		404				{object}	authsdk.StandardError	"Unknown username"
//	@Router			/auth/refresh/{username} [put].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pair, err := h.AuthService.Refresh(r.Context(), r.PathValue("username"), r.Header)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}
