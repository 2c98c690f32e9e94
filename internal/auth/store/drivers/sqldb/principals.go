package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
)

type principalsRepo struct {
	q querier
	d Dialect
}

const principalColumns = `id, username, full_name, password_hash, enabled, account_non_locked,
	account_non_expired, credentials_non_expired, created_at, updated_at`

func (r *principalsRepo) GetPrincipalByUsername(ctx context.Context, username string) (domain.Principal, error) {
	row := r.q.QueryRowContext(ctx,
		r.d.rebind(`SELECT `+principalColumns+` FROM principals WHERE username = ?`),
		username,
	)

	var (
		p                domain.Principal
		created, updated int64
	)
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.FullName,
		&p.PasswordHash,
		&p.Enabled,
		&p.AccountNonLocked,
		&p.AccountNonExpired,
		&p.CredentialsNonExpired,
		&created,
		&updated,
	)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	p.CreatedAt = time.UnixMilli(created).UTC()
	p.UpdatedAt = time.UnixMilli(updated).UTC()

	p.Authorities, err = r.authorities(ctx, p.ID)
	if err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

func (r *principalsRepo) authorities(ctx context.Context, principalID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		r.d.rebind(`SELECT authority FROM principal_authorities WHERE principal_id = ? ORDER BY position`),
		principalID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *principalsRepo) CreatePrincipal(ctx context.Context, p domain.Principal) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	_, err := r.q.ExecContext(ctx,
		r.d.rebind(`INSERT INTO principals (`+principalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID,
		p.Username,
		p.FullName,
		p.PasswordHash,
		p.Enabled,
		p.AccountNonLocked,
		p.AccountNonExpired,
		p.CredentialsNonExpired,
		p.CreatedAt.UnixMilli(),
		p.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		if r.d.IsUniqueViolation != nil && r.d.IsUniqueViolation(err) {
			return fmt.Errorf("%w: username %q", store.ErrAlreadyExists, p.Username)
		}
		return err
	}

	seen := make(map[string]struct{}, len(p.Authorities))
	pos := 0
	for _, a := range p.Authorities {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}

		_, err := r.q.ExecContext(ctx,
			r.d.rebind(`INSERT INTO principal_authorities (principal_id, authority, position) VALUES (?, ?, ?)`),
			p.ID, a, pos,
		)
		if err != nil {
			return err
		}
		pos++
	}
	return nil
}

func (r *principalsRepo) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	res, err := r.q.ExecContext(ctx,
		r.d.rebind(`UPDATE principals SET password_hash = ?, updated_at = ? WHERE username = ?`),
		hash, time.Now().UTC().UnixMilli(), username,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *principalsRepo) CountPrincipals(ctx context.Context) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM principals`).Scan(&n)
	return n, err
}
