package cached

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
	"github.com/tollgate-dev/tollgate/internal/auth/store/drivers/sqlite"
	"github.com/tollgate-dev/tollgate/pkg/idx"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*recordingTx)(nil)
	_ store.Tx    = (*committingTx)(nil)
)

func newBacking(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	return st
}

func seed(t *testing.T, st store.Store, username string, authorities ...string) domain.Principal {
	t.Helper()

	p := domain.Principal{
		ID:                    idx.New().String(),
		Username:              username,
		PasswordHash:          "$2a$10$abcdefghijklmnopqrstuv",
		Enabled:               true,
		AccountNonLocked:      true,
		AccountNonExpired:     true,
		CredentialsNonExpired: true,
		Authorities:           authorities,
	}
	require.NoError(t, st.Principals().CreatePrincipal(context.Background(), p))
	return p
}

// newCached wraps a fresh sqlite store seeded with "user" and returns it with
// the in-process Redis behind it.
func newCached(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	backing := newBacking(t)
	seed(t, backing, "user", "ADMIN")

	st := Wrap(backing, redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute, slogx.Discard())
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

// prime loads "user" into the cache.
func prime(t *testing.T, st *Store, mr *miniredis.Miniredis) {
	t.Helper()

	_, err := st.Principals().GetPrincipalByUsername(context.Background(), "user")
	require.NoError(t, err)
	require.True(t, mr.Exists(keyPrefix+"user"))
}

func TestFallsThroughWhenRedisIsDown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := newBacking(t)
	seed(t, backing, "user", "ADMIN")

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	st := Wrap(backing, rdb, time.Minute, slogx.Discard())
	t.Cleanup(func() { _ = st.Close() })

	for range 7 {
		got, err := st.Principals().GetPrincipalByUsername(ctx, "user")
		require.NoError(t, err)
		require.Equal(t, []string{"ADMIN"}, got.Authorities)
	}

	require.Equal(t, gobreaker.StateOpen, st.State())
	require.Error(t, st.PingCache(ctx))

	_, err := st.Principals().GetPrincipalByUsername(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestReadThroughKeepsHashOutOfRedis(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, mr := newCached(t)

	miss, err := st.Principals().GetPrincipalByUsername(ctx, "user")
	require.NoError(t, err)
	require.Empty(t, miss.PasswordHash)

	raw, err := mr.Get(keyPrefix + "user")
	require.NoError(t, err)
	require.Contains(t, raw, `"ADMIN"`)
	require.NotContains(t, raw, "$2a$")
	require.NotContains(t, raw, "password")
	require.Equal(t, time.Minute, mr.TTL(keyPrefix+"user"))

	hit, err := st.Principals().GetPrincipalByUsername(ctx, "user")
	require.NoError(t, err)
	require.Equal(t, miss, hit)

	full, err := st.Uncached().Principals().GetPrincipalByUsername(ctx, "user")
	require.NoError(t, err)
	require.Equal(t, "$2a$10$abcdefghijklmnopqrstuv", full.PasswordHash)
}

func TestWritesInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, mr := newCached(t)
	prime(t, st, mr)

	require.NoError(t, st.Principals().UpdatePasswordHash(ctx, "user", "$2a$10$other"))
	require.False(t, mr.Exists(keyPrefix+"user"))
}

func TestWithTxInvalidatesOnCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		st, mr := newCached(t)
		prime(t, st, mr)

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.Principals().UpdatePasswordHash(ctx, "user", "$2a$10$other")
		})
		require.NoError(t, err)
		require.False(t, mr.Exists(keyPrefix+"user"))
	})

	t.Run("rollback", func(t *testing.T) {
		st, mr := newCached(t)
		prime(t, st, mr)

		boom := errors.New("boom")
		err := st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Principals().UpdatePasswordHash(ctx, "user", "$2a$10$other"); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.True(t, mr.Exists(keyPrefix+"user"))
	})
}

func TestTxInvalidatesOnCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		st, mr := newCached(t)
		prime(t, st, mr)

		tx, err := st.Tx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Principals().UpdatePasswordHash(ctx, "user", "$2a$10$other"))
		require.True(t, mr.Exists(keyPrefix+"user"), "invalidation waits for commit")

		require.NoError(t, tx.Commit())
		require.False(t, mr.Exists(keyPrefix+"user"))
	})

	t.Run("rollback", func(t *testing.T) {
		st, mr := newCached(t)
		prime(t, st, mr)

		tx, err := st.Tx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Principals().UpdatePasswordHash(ctx, "user", "$2a$10$other"))
		require.NoError(t, tx.Rollback())
		require.True(t, mr.Exists(keyPrefix+"user"))
	})
}

func TestEntryRoundTrip(t *testing.T) {
	t.Parallel()

	p := domain.Principal{
		ID:                    "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV",
		Username:              "user",
		FullName:              "User",
		Enabled:               true,
		AccountNonLocked:      true,
		AccountNonExpired:     false,
		CredentialsNonExpired: true,
		Authorities:           []string{"ADMIN"},
		CreatedAt:             time.UnixMilli(1_700_000_000_000).UTC(),
		UpdatedAt:             time.UnixMilli(1_700_000_000_500).UTC(),
	}
	require.Equal(t, p, newEntry(p).principal())
}
