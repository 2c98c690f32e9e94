package domain

import (
	"slices"
	"time"
)

// AuthorityAdmin is the authority required for principal administration.
const AuthorityAdmin = "ADMIN"

// Principal is a stored identity that can log in.
type Principal struct {
	ID           string
	Username     string
	FullName     string
	PasswordHash string // argon2id PHC or legacy bcrypt

	Enabled               bool
	AccountNonLocked      bool
	AccountNonExpired     bool
	CredentialsNonExpired bool

	Authorities []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasAuthority reports whether the principal was granted authority.
func (p Principal) HasAuthority(authority string) bool {
	return slices.Contains(p.Authorities, authority)
}

// IsActive reports whether every account flag permits authentication.
func (p Principal) IsActive() bool {
	return p.Enabled && p.AccountNonLocked && p.AccountNonExpired && p.CredentialsNonExpired
}
