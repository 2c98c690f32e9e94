package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
	"github.com/tollgate-dev/tollgate/pkg/cryptox"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

// Reasons a credential check fails. Login collapses all of them into
// ErrAuthorizationFailure; they only reach logs and metrics.
var (
	ErrUnknownPrincipal = errors.New("unknown_principal")
	ErrBadPassword      = errors.New("bad_password")
)

// CredentialsAuthenticator checks a username and password pair.
type CredentialsAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (domain.Principal, error)
}

// PasswordAuthenticator verifies passwords against the stored hash and
// upgrades hashes that use outdated parameters.
type PasswordAuthenticator struct {
	Store store.Store
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnHash spends roughly the cost of a real verification so unknown users
// cannot be told apart by timing.
func burnHash(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword("tollgate-dummy-password")
	})
	if dummyHash != "" {
		_ = cryptox.VerifyPassword(password, dummyHash)
	}
}

func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, password string) (domain.Principal, error) {
	l := slogx.FromContext(ctx)

	p, err := a.Store.Principals().GetPrincipalByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnHash(password)
			return domain.Principal{}, ErrUnknownPrincipal
		}
		return domain.Principal{}, err
	}

	if err := cryptox.VerifyPassword(password, p.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			return domain.Principal{}, ErrBadPassword
		}
		return domain.Principal{}, err
	}

	if !p.IsActive() {
		return domain.Principal{}, ErrPrincipalInactive
	}

	if cryptox.NeedsRehash(p.PasswordHash) {
		if hash, err := cryptox.HashPassword(password); err != nil {
			l.Warn("password_rehash_failed", slog.String("username", username), slog.Any("error", err))
		} else if err := a.Store.Principals().UpdatePasswordHash(ctx, username, hash); err != nil {
			l.Warn("password_rehash_failed", slog.String("username", username), slog.Any("error", err))
		} else {
			p.PasswordHash = hash
			l.Info("password_rehashed", slog.String("username", username))
		}
	}

	return p, nil
}
