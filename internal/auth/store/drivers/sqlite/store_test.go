package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testPrincipal(id, username string, authorities ...string) domain.Principal {
	return domain.Principal{
		ID:                    id,
		Username:              username,
		FullName:              "Test " + username,
		PasswordHash:          "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		Enabled:               true,
		AccountNonLocked:      true,
		AccountNonExpired:     true,
		CredentialsNonExpired: true,
		Authorities:           authorities,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.Ping(context.Background()))
}

func TestPrincipalsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	repo := st.Principals()

	n, err := repo.CountPrincipals(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	in := testPrincipal("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", "user", "ADMIN", "USER", "ADMIN")
	in.CreatedAt = time.UnixMilli(1_700_000_000_123).UTC()
	require.NoError(t, repo.CreatePrincipal(ctx, in))

	got, err := repo.GetPrincipalByUsername(ctx, "user")
	require.NoError(t, err)
	require.Equal(t, in.ID, got.ID)
	require.Equal(t, in.FullName, got.FullName)
	require.Equal(t, in.PasswordHash, got.PasswordHash)
	require.True(t, got.IsActive())
	require.Equal(t, []string{"ADMIN", "USER"}, got.Authorities)
	require.Equal(t, in.CreatedAt, got.CreatedAt)

	n, err = repo.CountPrincipals(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestPrincipalFlagsPersist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	in := testPrincipal("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZW", "locked")
	in.AccountNonLocked = false
	require.NoError(t, st.Principals().CreatePrincipal(ctx, in))

	got, err := st.Principals().GetPrincipalByUsername(ctx, "locked")
	require.NoError(t, err)
	require.False(t, got.AccountNonLocked)
	require.False(t, got.IsActive())
	require.Empty(t, got.Authorities)
}

func TestGetPrincipalNotFound(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	_, err := st.Principals().GetPrincipalByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreatePrincipalDuplicateUsername(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.Principals().CreatePrincipal(ctx, testPrincipal("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZX", "dup")))
	err := st.Principals().CreatePrincipal(ctx, testPrincipal("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZY", "dup"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestUpdatePasswordHash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.Principals().CreatePrincipal(ctx, testPrincipal("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZZ", "user")))

	require.NoError(t, st.Principals().UpdatePasswordHash(ctx, "user", "$2a$10$new"))
	got, err := st.Principals().GetPrincipalByUsername(ctx, "user")
	require.NoError(t, err)
	require.Equal(t, "$2a$10$new", got.PasswordHash)

	require.ErrorIs(t, st.Principals().UpdatePasswordHash(ctx, "ghost", "x"), store.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Principals().CreatePrincipal(ctx, testPrincipal("01HQ7T3Z1MZ0JQ3M6MZQ1FQ400", "temp")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Principals().GetPrincipalByUsername(ctx, "temp")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxCommits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)

	err := st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Principals().CreatePrincipal(ctx, testPrincipal("01HQ7T3Z1MZ0JQ3M6MZQ1FQ401", "kept", "ADMIN"))
	})
	require.NoError(t, err)

	got, err := st.Principals().GetPrincipalByUsername(ctx, "kept")
	require.NoError(t, err)
	require.Equal(t, []string{"ADMIN"}, got.Authorities)
}

var _ store.Store = (*Store)(nil)
