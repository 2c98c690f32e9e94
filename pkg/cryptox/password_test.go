package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cryptox-pepper")
	if err != nil {
		panic(err)
	}
	SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func TestHashPasswordFormat(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple", "123456"},
		{"symbols", "P@ssw0rd!#$%^&*()"},
		{"long", strings.Repeat("a", 100)},
		{"empty", ""},
		{"unicode", "пароль🔒密码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6)
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=19456,t=2,p=1", parts[3])
			require.False(t, NeedsRehash(hash))

			require.NoError(t, VerifyPassword(tt.password, hash))
		})
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NoError(t, VerifyPassword("same", a))
	require.NoError(t, VerifyPassword("same", b))
}

func TestVerifyPasswordMismatch(t *testing.T) {
	hash, err := HashPassword("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{"wrong", "Correct-Password", "correct-password ", "", strings.Repeat("x", 10000)} {
		require.ErrorIs(t, VerifyPassword(wrong, hash), ErrMismatch, "input %q", wrong)
	}
}

func TestVerifyPasswordUnsupportedHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plaintext", "123456"},
		{"unknown scheme", "$scrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"bad params", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA"},
		{"bad hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"truncated bcrypt", "$2a$10$short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, VerifyPassword("pw", tt.hash), ErrUnsupportedHash)
		})
	}
}

func TestVerifyPasswordBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, VerifyPassword("123456", string(legacy)))
	require.ErrorIs(t, VerifyPassword("654321", string(legacy)), ErrMismatch)
	require.True(t, NeedsRehash(string(legacy)))
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]struct{}, 50)
	for range 50 {
		pw, err := GeneratePassword()
		require.NoError(t, err)
		require.Len(t, pw, 16)
		for _, c := range pw {
			ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
			require.True(t, ok, "unexpected character %q", c)
		}
		require.NotContains(t, seen, pw)
		seen[pw] = struct{}{}
	}
}

func TestPepperPersists(t *testing.T) {
	first, err := GetPepper()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	hash, err := HashPassword("pw")
	require.NoError(t, err)

	// Forgetting the in-memory pepper must reload the same value from disk.
	pepperMu.Lock()
	pepper = ""
	pepperMu.Unlock()

	again, err := GetPepper()
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.NoError(t, VerifyPassword("pw", hash))
}
