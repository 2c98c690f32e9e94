package jwtx

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and parses HS256 tokens with a key derived once from the
// configured secret. A Codec is immutable and safe for concurrent use.
type Codec struct {
	key []byte
}

// DeriveKey turns the configured secret into HMAC key material. The secret is
// base64 encoded and the encoded ASCII bytes are used as the key, which keeps
// tokens compatible with deployments that signed with the same transform.
func DeriveKey(secret string) []byte {
	return []byte(base64.StdEncoding.EncodeToString([]byte(secret)))
}

// NewCodec returns a Codec keyed from secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	return &Codec{key: DeriveKey(secret)}, nil
}

// Encode signs claims as a compact HS256 JWS.
func (c *Codec) Encode(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature of token and returns its claims. Expiry is
// not checked here; callers decide whether and when a token is too old.
func (c *Codec) Decode(token string) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithStrictDecoding(),
	)

	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}

	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing sub, iat or exp", ErrMalformed)
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
