package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
	"github.com/tollgate-dev/tollgate/pkg/cryptox"
	"github.com/tollgate-dev/tollgate/pkg/idx"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

// NewPrincipal is the input for UserService.CreatePrincipal.
type NewPrincipal struct {
	Username    string
	FullName    string
	Password    string
	Authorities []string
}

type UserService struct {
	Store store.Store
}

// CreatePrincipal hashes the password and stores an enabled principal. A
// taken username yields ErrDataIntegrity.
func (s *UserService) CreatePrincipal(ctx context.Context, in NewPrincipal) (domain.Principal, error) {
	l := slogx.FromContext(ctx)

	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return domain.Principal{}, fmt.Errorf("%w: username and password are required", ErrDataIntegrity)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Principal{}, err
	}

	authorities := make([]string, 0, len(in.Authorities))
	for _, a := range in.Authorities {
		if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
			authorities = append(authorities, a)
		}
	}

	p := domain.Principal{
		ID:                    idx.New().String(),
		Username:              username,
		FullName:              strings.TrimSpace(in.FullName),
		PasswordHash:          hash,
		Enabled:               true,
		AccountNonLocked:      true,
		AccountNonExpired:     true,
		CredentialsNonExpired: true,
		Authorities:           authorities,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Principals().CreatePrincipal(ctx, p)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Principal{}, fmt.Errorf("%w: username %s is already taken", ErrDataIntegrity, username)
		}
		l.Error("create_principal_failed", slog.String("username", username), slog.Any("error", err))
		return domain.Principal{}, err
	}

	l.Info("principal_created", slog.String("username", username), slog.Any("authorities", authorities))

	// Read back for the stored timestamps and deduplicated authorities.
	return s.GetPrincipal(ctx, username)
}

// GetPrincipal returns the principal or a NotFoundError.
func (s *UserService) GetPrincipal(ctx context.Context, username string) (domain.Principal, error) {
	p, err := s.Store.Principals().GetPrincipalByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, &NotFoundError{Username: username}
		}
		return domain.Principal{}, err
	}
	return p, nil
}
