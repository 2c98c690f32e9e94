package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tollgate-dev/tollgate/pkg/idx"
)

// RefreshTTLMultiplier is the fixed ratio between refresh and access token
// lifetimes. It is not independently configurable.
const RefreshTTLMultiplier = 3

// Claims are the claims carried by both access and refresh tokens. Refresh
// tokens leave Issuer empty.
type Claims struct {
	jwt.RegisteredClaims

	// Roles granted to the subject at issuance, e.g. ["ADMIN"].
	Roles []string `json:"roles"`
}

// NewClaims builds claims for subject valid from issuedAt until expiresAt.
// A nil roles slice is encoded as an empty array.
func NewClaims(subject string, roles []string, issuedAt, expiresAt time.Time, issuer string) Claims {
	if roles == nil {
		roles = []string{}
	}

	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        NewJTI(),
		},
		Roles: roles,
	}
}

// NewJTI returns a ULID for the "jti" claim.
func NewJTI() string {
	return idx.New().String()
}

// ValidateExpiry reports ErrExpired when the token expires at or before now.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil || !c.ExpiresAt.After(now) {
		return ErrExpired
	}
	return nil
}

// TTL returns the lifetime the token was issued with.
func (c *Claims) TTL() time.Duration {
	if c.IssuedAt == nil || c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(c.IssuedAt.Time)
}
