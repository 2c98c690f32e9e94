package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
	"github.com/tollgate-dev/tollgate/pkg/jwtx"
)

const bearerPrefix = "Bearer "

// DefaultIssuer is stamped on access tokens when neither the request nor the
// configuration supplies an issuer. Access tokens always carry one; refresh
// tokens never do, and that is how the two are told apart.
const DefaultIssuer = "tollgate"

// PrincipalLookup resolves a username to its stored principal.
type PrincipalLookup interface {
	GetPrincipalByUsername(ctx context.Context, username string) (domain.Principal, error)
}

// TokenService issues, verifies and refreshes signed tokens. All fields are
// set once at startup and never mutated.
type TokenService struct {
	Codec      *jwtx.Codec
	Principals PrincipalLookup
	AccessTTL  time.Duration

	// Issuer is used when the request context carries no base URL.
	Issuer string

	// Now defaults to time.Now.
	Now func() time.Time
}

// RefreshTTL is always three times AccessTTL.
func (s *TokenService) RefreshTTL() time.Duration {
	return jwtx.RefreshTTLMultiplier * s.AccessTTL
}

// now is truncated to the second, the precision of iat and exp.
func (s *TokenService) now() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Truncate(time.Second)
}

func (s *TokenService) issuer(ctx context.Context) string {
	if base, ok := httpx.BaseURLFromContext(ctx); ok && base != "" {
		return base
	}
	if s.Issuer != "" {
		return s.Issuer
	}
	return DefaultIssuer
}

// IssueAccessToken mints an access token and a refresh token for username.
// Only the access token carries an issuer.
func (s *TokenService) IssueAccessToken(ctx context.Context, username string, roles []string) (domain.TokenPair, error) {
	now := s.now()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL())

	access, err := s.Codec.Encode(jwtx.NewClaims(username, roles, now, accessExp, s.issuer(ctx)))
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.Codec.Encode(jwtx.NewClaims(username, roles, now, refreshExp, ""))
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		Username:      username,
		Authenticated: true,
		CreatedAt:     now,
		ExpiresAt:     accessExp,
		AccessToken:   access,
		RefreshToken:  refresh,
	}, nil
}

// Refresh exchanges a refresh token, with or without the "Bearer " prefix, for
// a new pair carrying the same subject and roles. An expired refresh token is
// rejected with jwtx.ErrExpired, an access token with ErrInvalidToken.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	refreshToken = strings.TrimPrefix(strings.TrimSpace(refreshToken), bearerPrefix)

	claims, err := s.Codec.Decode(refreshToken)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if err := claims.ValidateExpiry(s.now()); err != nil {
		return domain.TokenPair{}, err
	}
	if claims.Issuer != "" {
		return domain.TokenPair{}, fmt.Errorf("%w: access token presented for refresh", ErrInvalidToken)
	}

	return s.IssueAccessToken(ctx, claims.Subject, claims.Roles)
}

// Verify decodes token and rejects it with jwtx.ErrExpired once exp <= now.
// Decode failures are wrapped in ErrInvalidToken.
func (s *TokenService) Verify(token string) (jwtx.Claims, error) {
	claims, err := s.Codec.Decode(token)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if err := claims.ValidateExpiry(s.now()); err != nil {
		return jwtx.Claims{}, err
	}
	return claims, nil
}

// ResolveBearer returns the token after the "Bearer " prefix of the
// Authorization header.
func (s *TokenService) ResolveBearer(h http.Header) (string, bool) {
	return ResolveBearer(h)
}

func ResolveBearer(h http.Header) (string, bool) {
	v := h.Get("Authorization")
	if !strings.HasPrefix(v, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(v[len(bearerPrefix):])
	return tok, tok != ""
}

// Authenticate verifies an access token and resolves its subject to an
// active principal. Refresh tokens are rejected.
func (s *TokenService) Authenticate(ctx context.Context, token string) (domain.AuthenticatedContext, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return domain.AuthenticatedContext{}, err
	}
	if claims.Issuer == "" {
		return domain.AuthenticatedContext{}, fmt.Errorf("%w: refresh token presented as access token", ErrInvalidToken)
	}

	p, err := s.Principals.GetPrincipalByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AuthenticatedContext{}, &NotFoundError{Username: claims.Subject}
		}
		return domain.AuthenticatedContext{}, err
	}
	if !p.IsActive() {
		return domain.AuthenticatedContext{}, ErrPrincipalInactive
	}

	return domain.AuthenticatedContext{Principal: p, TokenRoles: claims.Roles}, nil
}
