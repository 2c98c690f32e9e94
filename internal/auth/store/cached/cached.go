// Package cached puts a Redis cache-aside layer in front of principal
// lookups. Redis is optional: every Redis failure falls through to the
// wrapped store, and a circuit breaker stops calling Redis while it is down.
//
// Password hashes never reach Redis. Principals read through this package
// always carry an empty PasswordHash; credential checks use Uncached.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
)

const keyPrefix = "tollgate:principal:"

// DefaultTTL is used when Wrap is given a non-positive ttl.
const DefaultTTL = 30 * time.Second

// Store decorates a store.Store so Principals() reads through Redis.
type Store struct {
	store.Store

	rdb *redis.Client
	cb  *gobreaker.CircuitBreaker
	ttl time.Duration
	log *slog.Logger
}

// Wrap returns next with a cached principal repository.
func Wrap(next store.Store, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "principal-cache",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit_breaker_state", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Store{Store: next, rdb: rdb, cb: cb, ttl: ttl, log: log}
}

func (s *Store) Principals() store.Principals {
	return &principals{next: s.Store.Principals(), s: s}
}

// WithTx invalidates cached principals written inside the transaction once it
// commits.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var touched []string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(&recordingTx{txStore: tx, touched: &touched})
	})
	if err == nil {
		for _, u := range touched {
			s.invalidate(ctx, u)
		}
	}
	return err
}

// Tx starts a transaction whose principal writes are invalidated once it
// commits.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.Store.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &committingTx{
		recordingTx: recordingTx{txStore: tx, touched: new([]string)},
		ctx:         ctx,
		s:           s,
	}, nil
}

// Uncached returns the wrapped store.
func (s *Store) Uncached() store.Store { return s.Store }

// State reports the breaker state, e.g. for readiness output.
func (s *Store) State() gobreaker.State { return s.cb.State() }

// PingCache checks Redis directly, bypassing the breaker.
func (s *Store) PingCache(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	err := s.Store.Close()
	return errors.Join(err, s.rdb.Close())
}

func (s *Store) get(ctx context.Context, username string) (domain.Principal, bool) {
	v, err := s.cb.Execute(func() (interface{}, error) {
		b, err := s.rdb.Get(ctx, keyPrefix+username).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		s.log.Debug("principal_cache_get_failed", "err", err)
		return domain.Principal{}, false
	}

	b, _ := v.([]byte)
	if b == nil {
		return domain.Principal{}, false
	}

	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		s.log.Warn("principal_cache_corrupt", "username", username, "err", err)
		return domain.Principal{}, false
	}
	return e.principal(), true
}

func (s *Store) set(ctx context.Context, p domain.Principal) {
	b, err := json.Marshal(newEntry(p))
	if err != nil {
		return
	}
	_, err = s.cb.Execute(func() (interface{}, error) {
		return nil, s.rdb.Set(ctx, keyPrefix+p.Username, b, s.ttl).Err()
	})
	if err != nil {
		s.log.Debug("principal_cache_set_failed", "err", err)
	}
}

func (s *Store) invalidate(ctx context.Context, username string) {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.rdb.Del(ctx, keyPrefix+username).Err()
	})
	if err != nil {
		s.log.Warn("principal_cache_invalidate_failed", "username", username, "err", err)
	}
}

type principals struct {
	next store.Principals
	s    *Store
}

func (p *principals) GetPrincipalByUsername(ctx context.Context, username string) (domain.Principal, error) {
	if got, ok := p.s.get(ctx, username); ok {
		return got, nil
	}

	got, err := p.next.GetPrincipalByUsername(ctx, username)
	if err != nil {
		return domain.Principal{}, err
	}
	got.PasswordHash = ""
	p.s.set(ctx, got)
	return got, nil
}

func (p *principals) CreatePrincipal(ctx context.Context, pr domain.Principal) error {
	if err := p.next.CreatePrincipal(ctx, pr); err != nil {
		return err
	}
	p.s.invalidate(ctx, pr.Username)
	return nil
}

func (p *principals) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	if err := p.next.UpdatePasswordHash(ctx, username, hash); err != nil {
		return err
	}
	p.s.invalidate(ctx, username)
	return nil
}

func (p *principals) CountPrincipals(ctx context.Context) (int64, error) {
	return p.next.CountPrincipals(ctx)
}

// txStore renames the embedded store.Tx so it does not hide Store.Tx.
type txStore = store.Tx

// recordingTx notes the usernames written through it.
type recordingTx struct {
	txStore
	touched *[]string
}

func (t *recordingTx) Principals() store.Principals {
	return &recordingPrincipals{Principals: t.txStore.Principals(), touched: t.touched}
}

// committingTx is handed out by Store.Tx.
type committingTx struct {
	recordingTx
	ctx context.Context
	s   *Store
}

func (t *committingTx) Commit() error {
	if err := t.txStore.Commit(); err != nil {
		return err
	}
	for _, u := range *t.touched {
		t.s.invalidate(t.ctx, u)
	}
	return nil
}

type recordingPrincipals struct {
	store.Principals
	touched *[]string
}

func (r *recordingPrincipals) CreatePrincipal(ctx context.Context, p domain.Principal) error {
	*r.touched = append(*r.touched, p.Username)
	return r.Principals.CreatePrincipal(ctx, p)
}

func (r *recordingPrincipals) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	*r.touched = append(*r.touched, username)
	return r.Principals.UpdatePasswordHash(ctx, username, hash)
}

// entry is the cached JSON form of a principal, without its password hash.
type entry struct {
	ID                    string   `json:"id"`
	Username              string   `json:"username"`
	FullName              string   `json:"full_name"`
	Enabled               bool     `json:"enabled"`
	AccountNonLocked      bool     `json:"account_non_locked"`
	AccountNonExpired     bool     `json:"account_non_expired"`
	CredentialsNonExpired bool     `json:"credentials_non_expired"`
	Authorities           []string `json:"authorities"`
	CreatedAt             int64    `json:"created_at"`
	UpdatedAt             int64    `json:"updated_at"`
}

func newEntry(p domain.Principal) entry {
	return entry{
		ID:                    p.ID,
		Username:              p.Username,
		FullName:              p.FullName,
		Enabled:               p.Enabled,
		AccountNonLocked:      p.AccountNonLocked,
		AccountNonExpired:     p.AccountNonExpired,
		CredentialsNonExpired: p.CredentialsNonExpired,
		Authorities:           p.Authorities,
		CreatedAt:             p.CreatedAt.UnixMilli(),
		UpdatedAt:             p.UpdatedAt.UnixMilli(),
	}
}

func (e entry) principal() domain.Principal {
	return domain.Principal{
		ID:                    e.ID,
		Username:              e.Username,
		FullName:              e.FullName,
		Enabled:               e.Enabled,
		AccountNonLocked:      e.AccountNonLocked,
		AccountNonExpired:     e.AccountNonExpired,
		CredentialsNonExpired: e.CredentialsNonExpired,
		Authorities:           e.Authorities,
		CreatedAt:             time.UnixMilli(e.CreatedAt).UTC(),
		UpdatedAt:             time.UnixMilli(e.UpdatedAt).UTC(),
	}
}
