package service

import (
	"context"
	"log/slog"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/pkg/cryptox"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

// BootstrapService seeds the first administrator into an empty store.
type BootstrapService struct {
	Users *UserService
}

// EnsureAdmin creates username with the ADMIN authority when no principal
// exists yet. When password is empty one is generated and returned so the
// caller can show it once.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, username, password string) (created bool, generated string, err error) {
	l := slogx.FromContext(ctx)

	if username == "" {
		l.Debug("bootstrap_skipped", slog.String("reason", "no admin username configured"))
		return false, "", nil
	}

	// 1. Only an empty store is seeded
	n, err := s.Users.Store.Principals().CountPrincipals(ctx)
	if err != nil {
		return false, "", err
	}
	if n > 0 {
		l.Debug("bootstrap_skipped", slog.Int64("principals", n))
		return false, "", nil
	}

	// 2. Pick a password
	if password == "" {
		password, err = cryptox.GeneratePassword()
		if err != nil {
			return false, "", err
		}
		generated = password
	}

	// 3. Create the admin
	_, err = s.Users.CreatePrincipal(ctx, NewPrincipal{
		Username:    username,
		FullName:    "Administrator",
		Password:    password,
		Authorities: []string{domain.AuthorityAdmin},
	})
	if err != nil {
		l.Error("bootstrap_failed", slog.Any("error", err))
		return false, "", err
	}

	l.Info("bootstrap_admin_created", slog.String("username", username))
	return true, generated, nil
}
