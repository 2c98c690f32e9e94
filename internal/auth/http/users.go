package http

import (
	"net/http"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/security"
	"github.com/tollgate-dev/tollgate/internal/auth/service"
	"github.com/tollgate-dev/tollgate/pkg/authsdk"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
)

func userResponse(p domain.Principal) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:          p.ID,
		Username:    p.Username,
		FullName:    p.FullName,
		Authorities: p.Authorities,
		Enabled:     p.Enabled,
		CreatedAt:   p.CreatedAt,
	}
}

type UserHandler struct {
	UserService *service.UserService
}

// Create handles POST /users.
//
//	@Summary		Create a principal
//	@Description	Creates a principal with the given authorities. Requires the ADMIN authority.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CreateUserRequest	true	"Principal"
//	@Success		201		{object}	authsdk.UserResponse		"Created principal"
//	@Failure		400		{object}	authsdk.ValidationError		"Validation error or username taken"
//	@Failure		401		{object}	authsdk.StandardError		"Missing or invalid access token"
//	@Failure		403		{object}	authsdk.StandardError		"Caller is not an ADMIN"
//	@Router			/users [post].
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w, r, err)
		return
	}
	if errs := req.Validate(); errs != nil {
		writeValidation(w, r, errs)
		return
	}

	p, err := h.UserService.CreatePrincipal(r.Context(), service.NewPrincipal{
		Username:    req.Username,
		FullName:    req.FullName,
		Password:    req.Password,
		Authorities: req.Authorities,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/users/"+p.Username)
	httpx.WriteJSON(w, http.StatusCreated, userResponse(p))
}

// Me handles GET /users/me.
//
//	@Summary		Current principal
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse	"Principal of the access token"
//	@Failure		401	{object}	authsdk.StandardError	"Missing or invalid access token"
//	@Router			/users/me [get].
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	actx, ok := security.FromContext(r.Context())
	if !ok {
		security.WriteUnauthorized(w, r)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponse(actx.Principal))
}

// Get handles GET /users/{username}.
//
//	@Summary		Principal by username
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			username	path		string					true	"Username"
//	@Success		200			{object}	authsdk.UserResponse	"Principal"
//	@Failure		401			{object}	authsdk.StandardError	"Missing or invalid access token"
//	@Failure		404			{object}	authsdk.StandardError	"Unknown username"
//	@Router			/users/{username} [get].
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.UserService.GetPrincipal(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponse(p))
}
