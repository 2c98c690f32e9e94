package domain

import "time"

// TokenPair is returned by login and refresh. Nothing about it is stored.
type TokenPair struct {
	Username      string
	Authenticated bool
	CreatedAt     time.Time
	ExpiresAt     time.Time // access token expiry
	AccessToken   string
	RefreshToken  string
}

// AuthenticatedContext binds the principal resolved for one request to the
// roles carried by its verified token.
type AuthenticatedContext struct {
	Principal  Principal
	TokenRoles []string
}

// Authorities are the principal's stored authorities. Access decisions use
// these, not TokenRoles.
func (a AuthenticatedContext) Authorities() []string {
	return a.Principal.Authorities
}

func (a AuthenticatedContext) HasAuthority(authority string) bool {
	return a.Principal.HasAuthority(authority)
}
