package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/metrics"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
	"github.com/tollgate-dev/tollgate/pkg/jwtx"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

// AuthService is the entry point for login and refresh.
type AuthService struct {
	Authenticator CredentialsAuthenticator
	Principals    PrincipalLookup
	Tokens        *TokenService

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Login checks the credentials and issues a token pair carrying the
// principal's stored authorities. Every credential failure is reported as
// ErrAuthorizationFailure.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	p, err := s.Authenticator.Authenticate(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPrincipal),
			errors.Is(err, ErrBadPassword),
			errors.Is(err, ErrPrincipalInactive):
			l.Info("login_rejected", slog.String("username", username), slog.String("reason", err.Error()))
			s.observeLogin(metrics.OutcomeFailure)
			return domain.TokenPair{}, ErrAuthorizationFailure
		default:
			l.Error("login_failed", slog.String("username", username), slog.Any("error", err))
			s.observeLogin(metrics.OutcomeError)
			return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrAuthorizationFailure, err)
		}
	}

	pair, err := s.Tokens.IssueAccessToken(ctx, p.Username, p.Authorities)
	if err != nil {
		s.observeLogin(metrics.OutcomeError)
		return domain.TokenPair{}, err
	}

	l.Info("login_succeeded", slog.String("username", p.Username))
	s.observeLogin(metrics.OutcomeSuccess)
	return pair, nil
}

// Refresh checks that username exists, then exchanges the refresh token
// carried in header (as the Authorization value, with or without the Bearer
// prefix). A token issued to a different subject is rejected.
func (s *AuthService) Refresh(ctx context.Context, username string, header http.Header) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if _, err := s.Principals.GetPrincipalByUsername(ctx, username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.observeRefresh(metrics.OutcomeNotFound)
			return domain.TokenPair{}, &NotFoundError{Username: username}
		}
		s.observeRefresh(metrics.OutcomeError)
		return domain.TokenPair{}, err
	}

	raw := header.Get("Authorization")
	if raw == "" {
		s.observeRefresh(metrics.OutcomeInvalid)
		return domain.TokenPair{}, fmt.Errorf("%w: missing refresh token", ErrInvalidToken)
	}

	pair, err := s.Tokens.Refresh(ctx, raw)
	if err != nil {
		outcome := metrics.OutcomeInvalid
		if errors.Is(err, jwtx.ErrExpired) {
			outcome = metrics.OutcomeExpired
		}
		l.Info("refresh_rejected", slog.String("username", username), slog.Any("error", err))
		s.observeRefresh(outcome)
		return domain.TokenPair{}, err
	}

	if pair.Username != username {
		l.Warn("refresh_subject_mismatch", slog.String("username", username), slog.String("subject", pair.Username))
		s.observeRefresh(metrics.OutcomeInvalid)
		return domain.TokenPair{}, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}

	s.observeRefresh(metrics.OutcomeSuccess)
	return pair, nil
}

func (s *AuthService) observeLogin(outcome string) {
	if s.Metrics != nil {
		s.Metrics.LoginTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *AuthService) observeRefresh(outcome string) {
	if s.Metrics != nil {
		s.Metrics.RefreshTotal.WithLabelValues(outcome).Inc()
	}
}
